// Package policy composes the engine/rpc/floatingip/driver capabilities
// into three topology variants: Flat, FlatDHCP and VLAN. Where the
// original source layers these through multiple inheritance
// (RPCAllocateFixedIP, FloatingIP and NetworkManager mixins), each
// variant here is a concrete struct embedding the capabilities it needs
// and routing calls explicitly — composition order is written as code,
// not resolved by an MRO.
package policy

import (
	"context"

	"github.com/gofrs/uuid"

	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/model"
)

// AllocateRequest is the input to AllocateForInstance: the instance, the
// networks it is joining, and whether it is the designated VPN-access
// instance for a VLAN project network (which binds network.VPNPrivateAddress
// directly instead of popping the pool).
type AllocateRequest struct {
	Instance *model.Instance
	Networks []*model.Network
	VPN      bool
	// RequestedAddresses optionally pins a specific fixed IP per network,
	// keyed by network id — the "boot with this address" path of
	// validate_networks/allocate_fixed_ip_for_instance. A network absent
	// from this map (or the map itself nil) falls back to the normal
	// free-pool claim.
	RequestedAddresses map[uuid.UUID]string
}

func (r AllocateRequest) requestedAddress(networkID uuid.UUID) string {
	return r.RequestedAddresses[networkID]
}

// Policy is the per-variant entry point the host-coordination and API
// layers call through. Every variant implements the full set; variants
// that have nothing to do for a given hook (Flat has no floating-IP
// capability, no bridge to ensure) still implement it as a no-op rather
// than omitting it, so callers never special-case by variant.
type Policy interface {
	// AllocateForInstance runs the ordering guarantee: all VIFs, then
	// all fixed-IP claims, then network-info assembly.
	AllocateForInstance(ctx context.Context, req AllocateRequest) ([]engine.NetworkInfo, error)
	// DeallocateForInstance runs the reverse ordering: floating IPs,
	// then fixed IPs, then VIFs.
	DeallocateForInstance(ctx context.Context, instance *model.Instance) error
	// OnBecomeHost runs the variant-specific hook after this process
	// claims network via NetworkSetHost.
	OnBecomeHost(ctx context.Context, network *model.Network) error
	// SetupComputeNetwork prepares a compute host's own local networking
	// for network in multi-host mode — distinct from OnBecomeHost, which
	// runs on the network-host that owns the allocation.
	SetupComputeNetwork(ctx context.Context, network *model.Network) error
}
