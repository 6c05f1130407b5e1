package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ahc/channel"
	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/topology"
)

type fairLossFlags struct {
	messages   int
	loss       float64
	duplicates float64
	seed       int64
	quiet      time.Duration
}

func newFairLossCmd(global *globalFlags) *cobra.Command {
	flags := &fairLossFlags{}

	cmd := &cobra.Command{
		Use:   "fairloss",
		Short: "Send messages over a fair-loss channel and count what arrives.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRun(cmd, global)
			if err != nil {
				return err
			}

			runErr := runFairLoss(r, flags, cmd.OutOrStdout())
			if err := r.close(); err != nil && runErr == nil {
				runErr = err
			}

			return runErr
		},
	}

	cmd.Flags().IntVar(&flags.messages, "messages", 1000,
		"number of messages to send")
	cmd.Flags().Float64Var(&flags.loss, "loss", 0.1,
		"probability that a message is lost")
	cmd.Flags().Float64Var(&flags.duplicates, "duplicates", 1,
		"average number of copies of a message that is not lost")
	cmd.Flags().Int64Var(&flags.seed, "seed", envInt64(envSeed, 1),
		"seed of the channel")
	cmd.Flags().DurationVar(&flags.quiet, "quiet", 100*time.Millisecond,
		"how long nothing must arrive before the run ends")

	return cmd
}

func runFairLoss(r *run, flags *fairLossFlags, out io.Writer) error {
	endpoint := func(r *sim.Registry, id sim.NodeID) (sim.Component, error) {
		p, err := sim.NewProbe(r, "Node", int(id))
		if err != nil {
			return nil, err
		}

		return p, nil
	}

	channels := channel.MakeBuilder().
		WithVariant(channel.P2PFairLoss).
		WithLossProbability(flags.loss).
		WithAverageNumberOfDuplicates(flags.duplicates).
		WithSeed(flags.seed)

	topo := topology.New(r.registry)

	err := topo.ConstructFromGraph(topology.Path(2),
		endpoint, channels.EdgeFactory())
	if err != nil {
		return err
	}

	topo.Start(r.ctx)

	senderComp, _ := topo.Node(0)
	receiverComp, _ := topo.Node(1)
	sender := senderComp.(*sim.Probe)
	receiver := receiverComp.(*sim.Probe)

	for seq := 0; seq < flags.messages; seq++ {
		sender.SendDown(sender.NewEvent(sim.KindMsgFromTop, seq))
	}

	received := func() int {
		return len(receiver.ReceivedOfKind(sim.KindMsgFromBottom))
	}

	waitErr := r.settle(received, flags.quiet)

	distinct := make(map[any]bool)
	for _, p := range receiver.Payloads(sim.KindMsgFromBottom) {
		distinct[p] = true
	}

	total := received()

	fmt.Fprintf(out, "sent      %d\n", flags.messages)
	fmt.Fprintf(out, "received  %d\n", total)
	fmt.Fprintf(out, "distinct  %d\n", len(distinct))

	if flags.messages > 0 {
		fmt.Fprintf(out, "delivery  %.3f\n",
			float64(len(distinct))/float64(flags.messages))
	}

	if len(distinct) > 0 {
		fmt.Fprintf(out, "copies    %.3f\n",
			float64(total)/float64(len(distinct)))
	}

	return waitErr
}
