package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ahc/channel"
	"github.com/sarchlab/ahc/protocols/adhocnode"
	"github.com/sarchlab/ahc/protocols/broadcasting"
	"github.com/sarchlab/ahc/protocols/linklayer"
	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/topology"
)

type floodFlags struct {
	graph       string
	nodes       int
	probability float64
	seed        int64
	origin      int
	count       int
}

func newFloodCmd(global *globalFlags) *cobra.Command {
	flags := &floodFlags{}

	cmd := &cobra.Command{
		Use:   "flood",
		Short: "Flood broadcasts from one node to the whole network.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRun(cmd, global)
			if err != nil {
				return err
			}

			runErr := runFlood(r, flags, cmd.OutOrStdout())
			if err := r.close(); err != nil && runErr == nil {
				runErr = err
			}

			return runErr
		},
	}

	cmd.Flags().StringVar(&flags.graph, "graph", "uring",
		"ring, uring, path, complete, or random")
	cmd.Flags().IntVar(&flags.nodes, "nodes", envInt(envNodes, 8),
		"number of nodes")
	cmd.Flags().Float64Var(&flags.probability, "probability", 0.3,
		"edge probability of random graphs")
	cmd.Flags().Int64Var(&flags.seed, "seed", envInt64(envSeed, 1),
		"seed of random graphs")
	cmd.Flags().IntVar(&flags.origin, "origin", 0,
		"node that broadcasts")
	cmd.Flags().IntVar(&flags.count, "count", 3,
		"number of broadcasts")

	return cmd
}

func applicationLayer(r *sim.Registry, id sim.NodeID) (sim.Component, error) {
	p, err := sim.NewProbe(r, "App", int(id))
	if err != nil {
		return nil, err
	}

	return p, nil
}

func runFlood(r *run, flags *floodFlags, out io.Writer) error {
	g, err := buildGraph(flags.graph, flags.nodes, flags.probability, flags.seed)
	if err != nil {
		return err
	}

	origin := sim.NodeID(flags.origin)
	if !g.HasNode(origin) {
		return fmt.Errorf("origin %d is not a node", flags.origin)
	}

	nodes := adhocnode.MakeBuilder().WithLayers(
		applicationLayer,
		broadcasting.MakeBuilder().LayerFactory(),
		linklayer.MakeBuilder().LayerFactory(),
	)

	topo := topology.New(r.registry)

	err = topo.ConstructFromGraph(g,
		nodes.NodeFactory(), channel.MakeBuilder().EdgeFactory())
	if err != nil {
		return err
	}

	topo.Start(r.ctx)

	comp, _ := r.registry.Get(sim.Key{Name: "Flooding", Instance: int(origin)})
	for i := 0; i < flags.count; i++ {
		comp.(*broadcasting.Comp).Broadcast(fmt.Sprintf("broadcast %d", i))
	}

	apps := make(map[sim.NodeID]*sim.Probe)
	reachable := 0

	for _, id := range topo.Nodes() {
		comp, _ := r.registry.Get(sim.Key{Name: "App", Instance: int(id)})
		apps[id] = comp.(*sim.Probe)

		if id != origin &&
			topo.GetNextHop(origin, id) != topology.Unreachable {
			reachable++
		}
	}

	delivered := func() int {
		n := 0
		for _, app := range apps {
			n += len(app.ReceivedOfKind(sim.KindMsgFromBottom))
		}

		return n
	}

	waitErr := r.waitFor(func() bool {
		return delivered() >= reachable*flags.count
	})

	fmt.Fprintf(out, "%-6s %s\n", "NODE", "DELIVERED")

	for _, id := range topo.Nodes() {
		fmt.Fprintf(out, "%-6d %d\n",
			id, len(apps[id].ReceivedOfKind(sim.KindMsgFromBottom)))
	}

	return waitErr
}
