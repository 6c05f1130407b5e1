package main

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override the flag defaults. They may also be
// set in a .env file in the working directory.
const (
	envLogLevel = "AHC_LOG_LEVEL"
	envRecord   = "AHC_RECORD"
	envTimeout  = "AHC_TIMEOUT"
	envNodes    = "AHC_NODES"
	envSeed     = "AHC_SEED"
)

// loadEnv reads the .env files into the environment. Variables that are
// already set win. Missing files are not an error.
func loadEnv(filenames ...string) error {
	for _, name := range filenames {
		err := godotenv.Load(name)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}

	return v
}

func envInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}

	return v
}
