// Package host implements the startup and periodic-task control flow a
// network-host process runs outside of any single RPC call: claim the
// networks this host already owns,
// run the variant-specific on_become_host hook for each, then loop
// picking up newly-unclaimed networks and sweeping stale leases.
package host

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/log"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/policy"
	"nethost.io/nethost/internal/server/metrics"
)

// Coordinator drives the startup reconciliation and periodic task loop
// for one network-host process.
type Coordinator struct {
	Engine *engine.Engine
	Policy policy.Policy

	// PeriodicInterval is how often the stale-lease sweep and the
	// single-network pickup run (default 60s, mirrors periodic_interval).
	PeriodicInterval time.Duration

	// TimeoutFixedIPs enables the sweep step of the periodic loop; the
	// Flat policy never sets this (stale-lease sweeping is FlatDHCP/VLAN
	// only).
	TimeoutFixedIPs bool
}

func (c *Coordinator) interval() time.Duration {
	if c.PeriodicInterval <= 0 {
		return 60 * time.Second
	}
	return c.PeriodicInterval
}

// Startup re-runs on_become_host for every network already claimed by
// this host, so a
// restarted process re-ensures bridges/DHCP/VPN state without waiting for
// the periodic loop's single-pickup-per-tick throttle.
func (c *Coordinator) Startup(ctx context.Context) error {
	networks, err := c.Engine.Store.NetworkGetAllByHost(ctx, c.Engine.Options.Host)
	if err != nil {
		return err
	}
	for _, n := range networks {
		if err := c.Policy.OnBecomeHost(ctx, n); err != nil {
			log.WithFields(logrus.Fields{"network": n.ID, "error": err}).Warnln("on_become_host failed during startup reconciliation")
		}
	}
	return nil
}

// Run starts the periodic task loop and blocks until ctx is cancelled.
// The loop is single-threaded: one tick runs to completion before the
// next is considered.
func (c *Coordinator) Run(ctx context.Context) {
	interval := c.interval()
	log.WithFields(logrus.Fields{"interval": interval}).Infoln("host periodic task loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infoln("host periodic task loop stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	if c.TimeoutFixedIPs {
		if _, err := c.Engine.SweepStaleLeases(ctx); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Warnln("stale lease sweep failed")
		}
	}

	claimed, err := c.Engine.ClaimOneNetwork(ctx, func(hookCtx context.Context, n *model.Network) error {
		return c.Policy.OnBecomeHost(hookCtx, n)
	})
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Warnln("network pickup failed")
		return
	}
	if claimed {
		log.Infoln("claimed an unclaimed network this tick")
	}

	c.reportPoolUtilization(ctx)
}

// reportPoolUtilization refreshes the per-network allocated-address gauge
// for every network this host owns. Best-effort: a failed read just skips
// that network's sample until the next tick.
func (c *Coordinator) reportPoolUtilization(ctx context.Context) {
	networks, err := c.Engine.Store.NetworkGetAllByHost(ctx, c.Engine.Options.Host)
	if err != nil {
		return
	}
	for _, n := range networks {
		fips, err := c.Engine.Store.FixedIPGetAllByNetwork(ctx, n.ID)
		if err != nil {
			continue
		}
		allocated := 0
		for _, f := range fips {
			if f.InstanceID != nil {
				allocated++
			}
		}
		metrics.SetPoolUtilization(n.Label, allocated)
	}
}
