package datarecording

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ExecTable is the name of the table that holds the run information.
const ExecTable = "exec_info"

const timeFormat = "2006-01-02 15:04:05.000000000"

// ExecInfo is one property of a run.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records how a run was started, the scenario parameters it
// ran with, and when it ended.
type ExecRecorder struct {
	recorder DataRecorder

	lock    sync.Mutex
	entries []ExecInfo
}

// NewExecRecorder creates the run information table in the recorder.
func NewExecRecorder(recorder DataRecorder) (*ExecRecorder, error) {
	if err := recorder.CreateTable(ExecTable, ExecInfo{}); err != nil {
		return nil, err
	}

	return &ExecRecorder{recorder: recorder}, nil
}

// Start records the start time, the command line, and the working
// directory.
func (e *ExecRecorder) Start() {
	e.Set("Start Time", time.Now().Format(timeFormat))
	e.Set("Command", strings.Join(os.Args, " "))

	if ex, err := os.Executable(); err == nil {
		e.Set("Working Directory", filepath.Dir(ex))
	}
}

// Set records a property of the run, such as a scenario parameter.
func (e *ExecRecorder) Set(property, value string) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.entries = append(e.entries, ExecInfo{Property: property, Value: value})
}

// End writes the run information along with the end time.
func (e *ExecRecorder) End() error {
	e.Set("End Time", time.Now().Format(timeFormat))

	e.lock.Lock()
	entries := e.entries
	e.entries = nil
	e.lock.Unlock()

	for _, entry := range entries {
		if err := e.recorder.InsertData(ExecTable, entry); err != nil {
			return err
		}
	}

	return e.recorder.Flush()
}
