package serve

import (
	"context"
	"fmt"

	"github.com/gobuffalo/pop/v6"
	"github.com/gofrs/uuid"
	"github.com/spf13/cobra"

	"nethost.io/nethost/internal/bus/local"
	"nethost.io/nethost/internal/config"
	"nethost.io/nethost/internal/driver"
	"nethost.io/nethost/internal/driver/fakedriver"
	"nethost.io/nethost/internal/driver/netlinkdriver"
	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/floatingip"
	"nethost.io/nethost/internal/host"
	"nethost.io/nethost/internal/log"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/policy"
	"nethost.io/nethost/internal/rpc"
	"nethost.io/nethost/internal/server"
	nhsignal "nethost.io/nethost/internal/signal"
	"nethost.io/nethost/internal/store/sqlstore"
)

// NewServeHostCommand builds the "serve host" command: the actual
// network-host daemon entrypoint.
func NewServeHostCommand() *cobra.Command {
	o := config.NewOptions()

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Run this process as a network-host, owning and servicing a subset of networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := config.MergeConfig(cmd.Flags(), o)
			if err != nil {
				return fmt.Errorf("misconfiguration\n%v", err)
			}
			return Run(nhsignal.SetupSignalHandler(), merged)
		},
		SilenceUsage: true,
	}
	o.AddFlags(cmd.Flags())
	return cmd
}

// Run builds every collaborator a network-host process needs and runs the
// host coordinator and ops HTTP surface until ctx is cancelled.
func Run(ctx context.Context, o *config.Options) error {
	conn, err := sqlstore.GetConnection(&pop.ConnectionDetails{URL: o.DatabaseURL})
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	st := sqlstore.New(conn)

	drv := buildDriver(o)

	eng := engine.New(st, drv, engine.Options{
		Host:                           o.NetworkHost,
		CreateUniqueMACAddressAttempts: o.CreateUniqueMACAddressAttempts,
		FakeNetwork:                    o.FakeNetwork,
		UpdateDHCPOnDisassociate:       o.UpdateDHCPOnDisassociate,
		FixedIPDisassociateTimeout:     o.FixedIPDisassociateTimeout,
	})

	var pol policy.Policy
	var b *local.Bus
	if o.Topology != "flat" {
		b = local.New(o.BusMaxWorkers, o.BusQueueDepth)
	}

	switch o.Topology {
	case "flat":
		pol = &policy.FlatPolicy{Engine: eng}
	case "vlan":
		fanOut := newFanOut(b, o, eng)
		pol = &policy.VLANPolicy{
			Engine:     eng,
			FloatingIP: floatingip.New(st, drv, nil, floatingip.Options{Host: o.NetworkHost, AutoAssign: o.AutoAssignFloatingIP}),
			FanOut:     fanOut,
			Driver:     drv,
			VLANIface:  o.VLANInterface,
			VPNIP:      o.VPNIP,
		}
	case "flatdhcp", "":
		fanOut := newFanOut(b, o, eng)
		pol = &policy.FlatDHCPPolicy{
			Engine:     eng,
			FloatingIP: floatingip.New(st, drv, nil, floatingip.Options{Host: o.NetworkHost, AutoAssign: o.AutoAssignFloatingIP}),
			FanOut:     fanOut,
			Driver:     drv,
			FlatBridge: o.FlatNetworkBridge,
			FlatIface:  o.FlatInterface,
		}
	default:
		return fmt.Errorf("unknown topology %q", o.Topology)
	}

	if b != nil {
		rpc.RegisterHandler(b, o.BusTopic, o.NetworkHost, st.NetworkGet, localAllocator(eng, o))
	}

	coord := &host.Coordinator{
		Engine:           eng,
		Policy:           pol,
		PeriodicInterval: o.PeriodicInterval,
		TimeoutFixedIPs:  o.TimeoutFixedIPs,
	}

	apiServer := server.NewAPIServer(o, st)
	if err := apiServer.PreRun(); err != nil {
		return fmt.Errorf("preparing ops server: %w", err)
	}

	if err := coord.Startup(ctx); err != nil {
		return fmt.Errorf("host startup: %w", err)
	}
	go coord.Run(ctx)

	log.Infof("network-host %s running topology %s", o.NetworkHost, o.Topology)
	if err := apiServer.Run(ctx); err != nil {
		return fmt.Errorf("ops server: %w", err)
	}
	return nil
}

func buildDriver(o *config.Options) driver.Driver {
	if o.FakeNetwork || o.NetworkDriver == "noop" {
		return fakedriver.New()
	}
	return netlinkdriver.New(netlinkdriver.Config{PublicIface: o.FlatInterface})
}

func newFanOut(b *local.Bus, o *config.Options, eng *engine.Engine) *rpc.FanOut {
	return &rpc.FanOut{
		Bus:   b,
		Topic: o.BusTopic,
		Self:  o.NetworkHost,
		Local: localAllocator(eng, o),
	}
}

// localAllocator is the claim a fan-out dispatch (or a remote host's rpc
// handler) runs for a network this process owns: a non-vpn AllocateFixedIP,
// refreshing DHCP unless fake_network suppresses all driver calls.
func localAllocator(eng *engine.Engine, o *config.Options) rpc.LocalAllocator {
	return func(ctx context.Context, instanceID uuid.UUID, network *model.Network, requestedAddress string) (string, error) {
		if requestedAddress != "" {
			return eng.AllocateFixedIPAt(ctx, instanceID, network, requestedAddress, !o.FakeNetwork)
		}
		return eng.AllocateFixedIP(ctx, instanceID, network, false, !o.FakeNetwork)
	}
}
