package engine

import (
	"context"

	"nethost.io/nethost/internal/engine/errs"
	"nethost.io/nethost/internal/log"
)

// LeaseFixedIP implements the lease half of the DHCP-coupled state
// machine: the DHCP daemon calls this when it hands out a lease for
// address. A record with no instance association is an orphan lease
// (logged and surfaced, state left alone); a record that is not currently
// allocated is accepted with a warning since the daemon may race with
// deallocate_fixed_ip.
func (e *Engine) LeaseFixedIP(ctx context.Context, address string) error {
	fip, err := e.Store.FixedIPGetByAddress(ctx, address)
	if err != nil {
		return err
	}
	if fip.InstanceID == nil {
		log.Warnf("dhcp lease reported for unassociated address %s", address)
		return errs.New(errs.KindOrphanLease, "dhcp lease reported for unassociated address %s", address)
	}
	if !fip.Allocated {
		log.Warnf("dhcp lease reported for already-deallocated address %s", address)
	}

	leased := true
	return e.Store.FixedIPUpdate(ctx, address, nil, &leased, nil)
}

// ReleaseFixedIP implements the release half of the lease state machine. If the address is
// already unallocated when the release arrives, the instance association
// is cleared now rather than waiting for the sweeper, and — if
// Options.UpdateDHCPOnDisassociate is set — the DHCP conf is refreshed so
// it drops the stale entry immediately.
func (e *Engine) ReleaseFixedIP(ctx context.Context, address string) error {
	fip, err := e.Store.FixedIPGetByAddress(ctx, address)
	if err != nil {
		return err
	}

	leased := false
	if err := e.Store.FixedIPUpdate(ctx, address, nil, &leased, nil); err != nil {
		return err
	}
	if fip.Allocated {
		return nil
	}

	network, err := e.Store.FixedIPDisassociate(ctx, address)
	if err != nil {
		return err
	}

	if e.Options.UpdateDHCPOnDisassociate && !e.Options.FakeNetwork {
		if err := e.Driver.UpdateDHCP(ctx, network); err != nil {
			return err
		}
	}
	return nil
}
