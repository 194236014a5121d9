package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"nethost.io/nethost/internal/log"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/server/metrics"
)

// SweepStaleLeases disassociates every FixedIP owned by this host that
// has sat allocated=false, leased=false past
// Options.FixedIPDisassociateTimeout, and return how many were cleared.
// Advisory — a missed tick only delays reclamation.
func (e *Engine) SweepStaleLeases(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-e.Options.FixedIPDisassociateTimeout)
	n, err := e.Store.FixedIPDisassociateAllByTimeout(ctx, e.Options.Host, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.WithFields(logrus.Fields{"host": e.Options.Host, "count": n}).Infoln("swept stale fixed ip leases")
	}
	metrics.RecordSweepReclaimed(n)
	return n, nil
}

// ClaimOneNetwork claims at most one unclaimed network (host IS NULL) per
// tick, via NetworkSetHost's compare-and-set.
// onBecomeHost is the variant-specific hook (Flat/FlatDHCP/VLAN) run on a
// successful claim; composed in by internal/policy rather than hardcoded
// here, since the engine itself is policy-neutral.
func (e *Engine) ClaimOneNetwork(ctx context.Context, onBecomeHost func(context.Context, *model.Network) error) (bool, error) {
	networks, err := e.Store.NetworkGetAll(ctx)
	if err != nil {
		return false, err
	}

	for _, n := range networks {
		if n.IsClaimed() {
			continue
		}
		claimed, err := e.Store.NetworkSetHost(ctx, n.ID, e.Options.Host)
		if err != nil {
			return false, err
		}
		if !claimed {
			// Lost the race to another network-host; try the next
			// candidate instead of giving up the whole tick.
			continue
		}
		if onBecomeHost != nil {
			if err := onBecomeHost(ctx, n); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	return false, nil
}
