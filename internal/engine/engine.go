// Package engine implements the allocation state machine: network
// creation, VIF allocation with MAC-collision retry, the fixed-IP
// claim/release lifecycle, the DHCP lease state machine, and the
// stale-lease sweeper. It is policy-neutral: internal/policy composes
// these operations into the Flat/FlatDHCP/VLAN variants, deciding *when*
// each is called and with what flags.
package engine

import (
	"time"

	"nethost.io/nethost/internal/driver"
	"nethost.io/nethost/internal/store"
)

// Options carries the subset of configuration the engine itself
// consults, as opposed to the policy or host-coordination layers.
type Options struct {
	// Host is this process's configured network-host identifier. This is
	// the single source of truth — never re-derived from a separate
	// global.
	Host string

	// CreateUniqueMACAddressAttempts bounds VIF MAC-collision retries
	// (default 5).
	CreateUniqueMACAddressAttempts int

	// FakeNetwork skips all Driver calls that touch host networking
	// (DHCP/RA/bridge), matching the fake_network configuration option.
	FakeNetwork bool

	// UpdateDHCPOnDisassociate refreshes the DHCP conf immediately when
	// release_fixed_ip finds the address already unallocated.
	UpdateDHCPOnDisassociate bool

	// FixedIPDisassociateTimeout is how long a FixedIP may sit
	// unallocated-and-unleased before the sweeper clears its instance
	// association. Only consulted when TimeoutFixedIPs is set — the Flat
	// policy never enables stale-lease sweeping.
	FixedIPDisassociateTimeout time.Duration
}

func (o Options) macAttempts() int {
	if o.CreateUniqueMACAddressAttempts <= 0 {
		return 5
	}
	return o.CreateUniqueMACAddressAttempts
}

// Engine bundles the Store and Driver contracts the allocation operations
// below are written against.
type Engine struct {
	Store   store.Store
	Driver  driver.Driver
	Options Options
}

// New constructs an Engine.
func New(st store.Store, drv driver.Driver, opts Options) *Engine {
	return &Engine{Store: st, Driver: drv, Options: opts}
}
