package policy

import (
	"context"

	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/engine/errs"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/store"
)

// FlatPolicy is the no-DHCP, user-managed-bridge variant: fixed IPs are
// claimed locally only (Flat networks are never multi-host), and
// deallocation disassociates the instance immediately rather than waiting
// on a DHCP lease.
type FlatPolicy struct {
	Engine *engine.Engine
}

var _ Policy = (*FlatPolicy)(nil)

func (p *FlatPolicy) AllocateForInstance(ctx context.Context, req AllocateRequest) ([]engine.NetworkInfo, error) {
	networks, err := networksForInstance(ctx, p.Engine, req)
	if err != nil {
		return nil, err
	}
	if err := p.Engine.ValidateNetworks(ctx, req.RequestedAddresses); err != nil {
		return nil, err
	}
	if err := allocateVIFs(ctx, p.Engine, req.Instance.ID, networks); err != nil {
		return nil, err
	}

	for _, n := range networks {
		// refreshDHCP is always false: Flat never runs a DHCP daemon.
		var err error
		if addr := req.requestedAddress(n.ID); addr != "" {
			_, err = p.Engine.AllocateFixedIPAt(ctx, req.Instance.ID, n, addr, false)
		} else {
			_, err = p.Engine.AllocateFixedIP(ctx, req.Instance.ID, n, req.VPN, false)
		}
		if err != nil {
			return nil, err
		}
	}

	return p.Engine.GetInstanceNetworkInfo(ctx, req.Instance)
}

func (p *FlatPolicy) DeallocateForInstance(ctx context.Context, instance *model.Instance) error {
	fixedIPs, err := p.Engine.Store.FixedIPGetByInstance(ctx, instance.ID)
	if err != nil {
		return err
	}
	for _, fip := range fixedIPs {
		// disassociateNow=true: Flat has no lease grace period.
		if err := p.Engine.DeallocateFixedIP(ctx, fip.Address, true); err != nil {
			return err
		}
	}
	return deleteVIFs(ctx, p.Engine, instance.ID)
}

// OnBecomeHost implements the Flat hook. injected and dns are already
// part of the network's stored configuration (set at create_networks
// time), so claiming the network is the whole hook — there is no bridge
// or DHCP daemon for Flat to bring up.
func (p *FlatPolicy) OnBecomeHost(ctx context.Context, network *model.Network) error {
	return nil
}

// SetupComputeNetwork is a no-op for Flat: there is no managed bridge or
// DHCP for a compute host to configure — the operator owns the bridge.
func (p *FlatPolicy) SetupComputeNetwork(ctx context.Context, network *model.Network) error {
	return nil
}

// networkFieldsFrom round-trips a Network's current values into
// store.NetworkFields so OnBecomeHost can submit a NetworkUpdate without
// clobbering fields it doesn't intend to change. Variant OnBecomeHost
// implementations mutate the returned struct before calling NetworkUpdate.
func networkFieldsFrom(n *model.Network) store.NetworkFields {
	return store.NetworkFields{
		Label:             n.Label,
		CIDR:              n.CIDR,
		CIDRv6:            n.CIDRv6,
		Netmask:           n.Netmask,
		NetmaskV6:         n.NetmaskV6,
		Gateway:           n.Gateway,
		GatewayV6:         n.GatewayV6,
		Broadcast:         n.Broadcast,
		DHCPStart:         n.DHCPStart,
		Bridge:            n.Bridge,
		BridgeInterface:   n.BridgeInterface,
		VLAN:              n.VLAN,
		VPNPublicAddress:  n.VPNPublicAddress,
		VPNPublicPort:     n.VPNPublicPort,
		VPNPrivateAddress: n.VPNPrivateAddress,
		DNS:               n.DNS,
		Injected:          n.Injected,
		MultiHost:         n.MultiHost,
	}
}

// errNotImplemented is the not-implemented kind, used by abstract hooks
// a variant doesn't supply a concrete body for.
func errNotImplemented(hook string) error {
	return errs.New(errs.KindNotImplemented, "%s has no implementation for this policy variant", hook)
}
