// Package network is the network-admin CLI: carve new networks and list
// the ones already provisioned. This is the operator-facing equivalent of
// nova-network's create_networks/list_networks manage.py actions, built
// directly against internal/engine and internal/store/sqlstore rather than
// any RPC surface — no tenant-facing API is in scope.
package network

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gobuffalo/pop/v6"
	"github.com/spf13/cobra"

	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/store/sqlstore"
)

func NewNetworkCommand() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "network",
		Short: "Carve and list networks",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "sqlstore connection string")

	cmd.AddCommand(newCreateCommand(&databaseURL))
	cmd.AddCommand(newListCommand(&databaseURL))
	return cmd
}

func RegisterCommands(parent *cobra.Command) {
	parent.AddCommand(NewNetworkCommand())
}

func newCreateCommand(databaseURL *string) *cobra.Command {
	p := engine.CreateNetworksParams{NumNetworks: 1, NetworkSize: 256}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Carve one or more networks from a parent cidr (create_networks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(*databaseURL, func(ctx context.Context, eng *engine.Engine) error {
				created, err := eng.CreateNetworks(ctx, p)
				if err != nil {
					return err
				}
				printNetworks(created)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&p.Label, "label", "", "network label prefix")
	cmd.Flags().StringVar(&p.CIDR, "cidr", "", "parent cidr to carve from")
	cmd.Flags().IntVar(&p.NumNetworks, "num-networks", p.NumNetworks, "number of networks to carve")
	cmd.Flags().IntVar(&p.NetworkSize, "network-size", p.NetworkSize, "address count per carved network")
	cmd.Flags().StringVar(&p.CIDRv6, "cidr-v6", "", "parent ipv6 prefix")
	cmd.Flags().StringVar(&p.GatewayV6, "gateway-v6", "", "ipv6 gateway override")
	cmd.Flags().StringVar(&p.Bridge, "bridge", "", "bridge device")
	cmd.Flags().StringVar(&p.BridgeInterface, "bridge-interface", "", "physical interface enslaved to the bridge")
	cmd.Flags().StringVar(&p.DNS, "dns", "", "dns server")
	cmd.Flags().BoolVar(&p.Injected, "injected", false, "inject network config into guest images")
	cmd.Flags().BoolVar(&p.MultiHost, "multi-host", false, "allow the network to be served by several hosts")
	cmd.Flags().BoolVar(&p.VPN, "vpn", false, "carve vlan/vpn networks instead of flat/flatdhcp ones")
	cmd.Flags().IntVar(&p.VLANStart, "vlan-start", 0, "first vlan tag (required with --vpn)")
	cmd.Flags().IntVar(&p.VPNStart, "vpn-start", 0, "first vpn public port (required with --vpn)")
	cmd.Flags().IntVar(&p.CntVPNClients, "cnt-vpn-clients", 0, "reserved vpn client address count per network")
	return cmd
}

func newListCommand(databaseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every provisioned network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(*databaseURL, func(ctx context.Context, eng *engine.Engine) error {
				networks, err := eng.Store.NetworkGetAll(ctx)
				if err != nil {
					return err
				}
				printNetworks(networks)
				return nil
			})
		},
	}
}

func withEngine(databaseURL string, fn func(ctx context.Context, eng *engine.Engine) error) error {
	conn, err := sqlstore.GetConnection(&pop.ConnectionDetails{URL: databaseURL})
	if err != nil {
		return err
	}
	defer conn.Close()

	st := sqlstore.New(conn)
	eng := engine.New(st, nil, engine.Options{})
	return fn(context.Background(), eng)
}

func printNetworks(networks []*model.Network) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tCIDR\tGATEWAY\tHOST\tBRIDGE")
	for _, n := range networks {
		host := ""
		if n.Host != nil {
			host = *n.Host
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.Label, n.CIDR, n.Gateway, host, n.Bridge)
	}
	w.Flush()
}
