package policy

import (
	"context"

	"nethost.io/nethost/internal/driver"
	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/floatingip"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/rpc"
)

// FlatDHCPPolicy manages a bridge and a DHCP daemon per network and
// composes the floating-IP mixin and multi-host RPC fan-out. Unlike
// Flat, deallocation leaves the instance association in place for the
// lease grace period.
type FlatDHCPPolicy struct {
	Engine     *engine.Engine
	FloatingIP *floatingip.Service
	FanOut     *rpc.FanOut
	Driver     driver.Driver
	FlatBridge string
	FlatIface  string
}

var _ Policy = (*FlatDHCPPolicy)(nil)

func (p *FlatDHCPPolicy) AllocateForInstance(ctx context.Context, req AllocateRequest) ([]engine.NetworkInfo, error) {
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

	targets := make([]rpc.Target, len(networks))
	for i, n := range networks {
		targets[i] = rpc.Target{Network: n, RequestedAddress: req.requestedAddress(n.ID)}
	}

	if _, err := p.FanOut.Allocate(ctx, req.Instance.ID, targets); err != nil {
		return nil, err
	}

	if p.FloatingIP != nil {
		fixedIPs, err := p.Engine.Store.FixedIPGetByInstance(ctx, req.Instance.ID)
		if err != nil {
			return nil, err
		}
		if err := p.FloatingIP.AutoAssign(ctx, req.Instance.ProjectID, fixedIPs); err != nil {
			return nil, err
		}
	}

	return p.Engine.GetInstanceNetworkInfo(ctx, req.Instance)
}

func (p *FlatDHCPPolicy) DeallocateForInstance(ctx context.Context, instance *model.Instance) error {
	fixedIPs, err := p.Engine.Store.FixedIPGetByInstance(ctx, instance.ID)
	if err != nil {
		return err
	}

	if p.FloatingIP != nil {
		if err := p.FloatingIP.ReleaseAutoAssigned(ctx, fixedIPs); err != nil {
			return err
		}
	}

	for _, fip := range fixedIPs {
		// disassociateNow=false: the DHCP lease release (or the stale-lease
		// sweep) clears the instance association, not deallocation itself.
		if err := p.Engine.DeallocateFixedIP(ctx, fip.Address, false); err != nil {
			return err
		}
	}

	return deleteVIFs(ctx, p.Engine, instance.ID)
}

// OnBecomeHost ensures the flat bridge exists and (re)starts DHCP for the
// network this process just claimed.
func (p *FlatDHCPPolicy) OnBecomeHost(ctx context.Context, network *model.Network) error {
	bridge := network.Bridge
	if bridge == "" {
		bridge = p.FlatBridge
	}
	if err := p.Driver.EnsureBridge(ctx, bridge, p.FlatIface, network); err != nil {
		return err
	}
	return p.Driver.UpdateDHCP(ctx, network)
}

// SetupComputeNetwork brings up the same bridge on a compute host sharing
// a multi_host network, independent of which host owns the allocation.
func (p *FlatDHCPPolicy) SetupComputeNetwork(ctx context.Context, network *model.Network) error {
	bridge := network.Bridge
	if bridge == "" {
		bridge = p.FlatBridge
	}
	return p.Driver.EnsureBridge(ctx, bridge, p.FlatIface, network)
}
