package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/ara"
	"github.com/opd-ai/ara/config"
	"github.com/opd-ai/ara/transport"
)

// testnetOptions configures a local test network.
type testnetOptions struct {
	nodes    int
	host     string
	basePort int
	timeout  time.Duration
	message  string
}

func newTestnetCommand() *cobra.Command {
	opts := testnetOptions{}

	cmd := &cobra.Command{
		Use:   "testnet",
		Short: "Run a chain of nodes on this host and route a message across it",
		Long: `Start a chain of nodes on the loopback interface, each a radio neighbor
of the next, then send a message from the first node to the last. The first
packet triggers route discovery across the whole chain; the command reports
whether the message arrived and the route the first node learned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTestnet(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.nodes, "nodes", 4, "number of nodes in the chain")
	cmd.Flags().StringVar(&opts.host, "host", "127.0.0.1", "host the nodes listen on")
	cmd.Flags().IntVar(&opts.basePort, "base-port", 17000, "UDP port of the first node")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "time allowed for delivery")
	cmd.Flags().StringVar(&opts.message, "message", "hello", "message to send")

	return cmd
}

func (o testnetOptions) validate() error {
	if o.nodes < 2 {
		return fmt.Errorf("a test network needs at least 2 nodes, got %d", o.nodes)
	}
	if o.basePort <= 0 || o.basePort+o.nodes > 65535 {
		return fmt.Errorf("invalid base port %d for %d nodes", o.basePort, o.nodes)
	}
	if o.timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if o.message == "" {
		return errors.New("message cannot be empty")
	}
	return nil
}

// chainConfigs returns one configuration per node, node i linked to i-1 and
// i+1.
func chainConfigs(o testnetOptions) []*config.Config {
	endpoint := func(i int) string {
		return net.JoinHostPort(o.host, strconv.Itoa(o.basePort+i))
	}

	configs := make([]*config.Config, o.nodes)
	for i := range configs {
		cfg := config.Default()
		cfg.Node.Address = chainAddress(i)
		cfg.Node.Listen = endpoint(i)
		for _, j := range []int{i - 1, i + 1} {
			if j < 0 || j >= o.nodes {
				continue
			}
			cfg.Node.Neighbors = append(cfg.Node.Neighbors, config.NeighborConfig{
				Address:  chainAddress(j),
				Endpoint: endpoint(j),
			})
		}
		configs[i] = cfg
	}
	return configs
}

func chainAddress(i int) transport.Address {
	return transport.MustParseAddress(fmt.Sprintf("fd00::%x", i+1))
}

func runTestnet(ctx context.Context, o testnetOptions, out io.Writer) error {
	if err := o.validate(); err != nil {
		return err
	}

	nodes := make([]*ara.Node, 0, o.nodes)
	defer func() {
		for _, node := range nodes {
			node.Close()
		}
	}()

	for _, cfg := range chainConfigs(o) {
		node, err := ara.New(ara.NewOptions(cfg))
		if err != nil {
			return err
		}
		nodes = append(nodes, node)
	}

	first, last := nodes[0], nodes[len(nodes)-1]

	delivered := make(chan string, 1)
	last.OnReceive(func(source transport.Address, payload []byte) {
		select {
		case delivered <- string(payload):
		default:
		}
	})

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	g, runCtx := errgroup.WithContext(ctx)
	for _, node := range nodes {
		g.Go(func() error {
			if err := node.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}

	start := time.Now()
	outcome, err := first.Send(ctx, last.LocalAddress(), []byte(o.message))
	if err != nil {
		cancel()
		g.Wait()
		return err
	}
	fmt.Fprintf(out, "sent %q from %s to %s: %s\n", o.message, first.LocalAddress(), last.LocalAddress(), outcome)

	var result error
	select {
	case payload := <-delivered:
		fmt.Fprintf(out, "delivered %q across %d hops in %s\n", payload, o.nodes-1, time.Since(start).Round(time.Millisecond))

		entries, err := first.RoutingTable(ctx)
		if err != nil {
			result = err
			break
		}
		for _, entry := range entries {
			for _, hop := range entry.NextHops {
				fmt.Fprintf(out, "route %s via %s pheromone %.2f\n", entry.Destination, hop.Address, hop.Pheromone)
			}
		}
	case <-ctx.Done():
		result = fmt.Errorf("message not delivered within %s", o.timeout)
	}

	cancel()
	if err := g.Wait(); err != nil && result == nil {
		result = err
	}
	return result
}
