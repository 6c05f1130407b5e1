package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/atomic"

	"github.com/sarchlab/ahc/channel"
	"github.com/sarchlab/ahc/protocols/snapshot"
	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/sim/hooking"
	"github.com/sarchlab/ahc/topology"
)

type snapshotFlags struct {
	graph       string
	nodes       int
	probability float64
	seed        int64
	initiator   int
	traffic     int
}

func newSnapshotCmd(global *globalFlags) *cobra.Command {
	flags := &snapshotFlags{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Take a Chandy-Lamport snapshot while nodes exchange messages.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRun(cmd, global)
			if err != nil {
				return err
			}

			runErr := runSnapshot(r, flags, cmd.OutOrStdout())
			if err := r.close(); err != nil && runErr == nil {
				runErr = err
			}

			return runErr
		},
	}

	cmd.Flags().StringVar(&flags.graph, "graph", "ring",
		"ring, uring, path, complete, or random")
	cmd.Flags().IntVar(&flags.nodes, "nodes", envInt(envNodes, 5),
		"number of nodes")
	cmd.Flags().Float64Var(&flags.probability, "probability", 0.5,
		"edge probability of random graphs")
	cmd.Flags().Int64Var(&flags.seed, "seed", envInt64(envSeed, 1),
		"seed of random graphs")
	cmd.Flags().IntVar(&flags.initiator, "initiator", 0,
		"node that starts the snapshot")
	cmd.Flags().IntVar(&flags.traffic, "traffic", 10,
		"basic messages every node sends before the snapshot starts")

	return cmd
}

func runSnapshot(r *run, flags *snapshotFlags, out io.Writer) error {
	g, err := buildGraph(flags.graph, flags.nodes, flags.probability, flags.seed)
	if err != nil {
		return err
	}

	initiator := sim.NodeID(flags.initiator)
	if !g.HasNode(initiator) {
		return fmt.Errorf("initiator %d is not a node", flags.initiator)
	}

	terminated := atomic.NewInt64(0)
	r.registry.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
		if ctx.Pos == snapshot.HookPosSnapshotTerminated {
			terminated.Inc()
		}
	}))

	topo := topology.New(r.registry)

	err = topo.ConstructFromGraph(g,
		snapshot.MakeBuilder().WithEdges(topo).NodeFactory(),
		channel.MakeBuilder().EdgeFactory())
	if err != nil {
		return err
	}

	topo.Start(r.ctx)

	driver := sim.Key{Name: "Driver"}
	for _, id := range topo.Nodes() {
		comp, _ := topo.Node(id)

		for seq := 0; seq < flags.traffic; seq++ {
			msg := sim.Message{
				Header: sim.MessageHeader{
					Type:       "BASIC",
					From:       id,
					To:         sim.LinkLayerBroadcast,
					NextHop:    sim.LinkLayerBroadcast,
					SequenceID: seq,
				},
				Payload: seq,
			}
			comp.TriggerEvent(sim.NewEvent(driver, sim.KindMsgFromTop, msg))
		}
	}

	comp, _ := topo.Node(initiator)
	comp.(*snapshot.Comp).TakeSnapshot()

	waitErr := r.waitFor(func() bool {
		return terminated.Load() == int64(len(topo.Nodes()))
	})

	fmt.Fprintf(out, "%-6s %-11s %-9s %s\n",
		"NODE", "PHASE", "MARKERS", "IN TRANSIT")

	for _, id := range topo.Nodes() {
		comp, _ := topo.Node(id)
		s := comp.(*snapshot.Comp).State()

		received, inTransit := 0, 0
		for ch, ok := range s.MarkerReceived {
			if ok {
				received++
			}

			inTransit += len(s.InTransit[ch])
		}

		fmt.Fprintf(out, "%-6d %-11s %d/%-7d %d\n",
			id, s.Phase, received, len(s.MarkerReceived), inTransit)
	}

	if waitErr != nil {
		return fmt.Errorf("%d of %d nodes terminated: %w",
			terminated.Load(), len(topo.Nodes()), waitErr)
	}

	return nil
}
