package policy

import (
	"context"
	"net"

	"nethost.io/nethost/internal/driver"
	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/floatingip"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/rpc"
)

// VLANPolicy manages a per-project VLAN bridge plus DHCP and VPN access,
// on top of the same floating-IP and RPC fan-out capabilities as FlatDHCP.
// A VPN-access instance binds network.VPNPrivateAddress directly instead
// of popping the fixed-IP pool.
type VLANPolicy struct {
	Engine     *engine.Engine
	FloatingIP *floatingip.Service
	FanOut     *rpc.FanOut
	Driver     driver.Driver
	VLANIface  string
	VPNIP      string
}

var _ Policy = (*VLANPolicy)(nil)

func (p *VLANPolicy) AllocateForInstance(ctx context.Context, req AllocateRequest) ([]engine.NetworkInfo, error) {
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

	if req.VPN {
		// The VPN-access instance binds the network's reserved private
		// address directly rather than going through the fan-out.
		for _, n := range networks {
			if n.VPNPrivateAddress == nil {
				continue
			}
			if _, err := p.Engine.AllocateFixedIP(ctx, req.Instance.ID, n, true, true); err != nil {
				return nil, err
			}
		}
	} else {
		targets := make([]rpc.Target, len(networks))
		for i, n := range networks {
			targets[i] = rpc.Target{Network: n, RequestedAddress: req.requestedAddress(n.ID)}
		}
		if _, err := p.FanOut.Allocate(ctx, req.Instance.ID, targets); err != nil {
			return nil, err
		}
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

func (p *VLANPolicy) DeallocateForInstance(ctx context.Context, instance *model.Instance) error {
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
		// disassociateNow=false: same lease-grace rule as FlatDHCP.
		if err := p.Engine.DeallocateFixedIP(ctx, fip.Address, false); err != nil {
			return err
		}
	}

	return deleteVIFs(ctx, p.Engine, instance.ID)
}

// OnBecomeHost ensures the VLAN bridge, assigns a public VPN address if the
// network doesn't already have one, installs the VPN port-forward, and
// refreshes router advertisements for IPv6-enabled networks.
func (p *VLANPolicy) OnBecomeHost(ctx context.Context, network *model.Network) error {
	if network.VLAN == nil {
		return errNotImplemented("on_become_host: network has no vlan assigned")
	}

	if err := p.Driver.EnsureVLANBridge(ctx, *network.VLAN, network.Bridge, p.VLANIface, network); err != nil {
		return err
	}

	fields := networkFieldsFrom(network)
	dirty := false
	if fields.VPNPublicAddress == nil || *fields.VPNPublicAddress == "" {
		vpnIP := p.VPNIP
		fields.VPNPublicAddress = &vpnIP
		dirty = true
	}
	if dirty {
		if err := p.Engine.Store.NetworkUpdate(ctx, network.ID, fields); err != nil {
			return err
		}
		network = cloneWithVPNPublicAddress(network, fields.VPNPublicAddress)
	}

	if network.VPNPublicAddress != nil && network.VPNPublicPort != nil && network.VPNPrivateAddress != nil {
		publicIP := net.ParseIP(*network.VPNPublicAddress)
		privateIP := net.ParseIP(*network.VPNPrivateAddress)
		if publicIP != nil && privateIP != nil {
			if err := p.Driver.EnsureVLANForward(ctx, publicIP, *network.VPNPublicPort, privateIP); err != nil {
				return err
			}
		}
	}

	if network.HasIPv6() {
		if err := p.Driver.UpdateRA(ctx, network); err != nil {
			return err
		}
	}

	return nil
}

// SetupComputeNetwork brings up the VLAN bridge on a compute host sharing
// a multi_host VLAN network.
func (p *VLANPolicy) SetupComputeNetwork(ctx context.Context, network *model.Network) error {
	if network.VLAN == nil {
		return errNotImplemented("setup_compute_network: network has no vlan assigned")
	}
	return p.Driver.EnsureVLANBridge(ctx, *network.VLAN, network.Bridge, p.VLANIface, network)
}

func cloneWithVPNPublicAddress(n *model.Network, addr *string) *model.Network {
	clone := *n
	clone.VPNPublicAddress = addr
	return &clone
}
