package engine

import (
	"context"
	"fmt"
	"net"

	"nethost.io/nethost/internal/engine/errs"
	"nethost.io/nethost/internal/ipaddr"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/store"
)

// CreateNetworksParams is the operator-supplied input to CreateNetworks.
// VLAN/VPN mode is selected by VPN=true; VLANStart/VPNStart are required
// in that case.
type CreateNetworksParams struct {
	Label       string
	CIDR        string
	NumNetworks int
	NetworkSize int
	CIDRv6      string
	GatewayV6   string

	Bridge          string
	BridgeInterface string
	DNS             string
	Injected        bool
	MultiHost       bool

	VPN           bool
	VLANStart     int
	VPNStart      int
	CntVPNClients int
}

// CreateNetworks carves p.CIDR into NumNetworks contiguous subnets and
// materializes a Network row (and its full FixedIP pool) for each. A
// subnet whose CIDR already exists fails the call with errs.KindConflict;
// networks created earlier in the same call are kept.
func (e *Engine) CreateNetworks(ctx context.Context, p CreateNetworksParams) ([]*model.Network, error) {
	if p.VPN {
		if err := ipaddr.VLANPrecondition(p.NumNetworks, p.VLANStart); err != nil {
			return nil, err
		}
	}

	subnets, err := ipaddr.Subnet(p.CIDR, p.NumNetworks, p.NetworkSize)
	if err != nil {
		return nil, err
	}

	var v6Subnets []*net.IPNet
	if p.CIDRv6 != "" {
		v6Subnets, err = ipaddr.SubnetV6(p.CIDRv6, p.NumNetworks)
		if err != nil {
			return nil, err
		}
	}

	var created []*model.Network
	for i, subnet := range subnets {
		fields, err := e.networkFields(p, i, subnet, v6Subnets)
		if err != nil {
			return nil, err
		}

		n, err := e.Store.NetworkCreateSafe(ctx, fields)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, errs.New(errs.KindConflict, "network cidr %s already exists", fields.CIDR)
		}

		if err := e.materializeFixedIPs(ctx, n, p); err != nil {
			return nil, err
		}
		created = append(created, n)
	}
	return created, nil
}

func (e *Engine) networkFields(p CreateNetworksParams, index int, subnet *net.IPNet, v6Subnets []*net.IPNet) (store.NetworkFields, error) {
	derived, err := ipaddr.DeriveFields(subnet, p.VPN)
	if err != nil {
		return store.NetworkFields{}, err
	}

	label := ipaddr.SubnetLabel(p.Label, index, p.NumNetworks)

	f := store.NetworkFields{
		Label:           label,
		CIDR:            derived.CIDR.String(),
		Netmask:         derived.Netmask,
		Gateway:         derived.Gateway.String(),
		Broadcast:       derived.Broadcast.String(),
		DHCPStart:       derived.DHCPStart.String(),
		Bridge:          p.Bridge,
		BridgeInterface: p.BridgeInterface,
		DNS:             p.DNS,
		Injected:        p.Injected,
		MultiHost:       p.MultiHost,
	}

	if index < len(v6Subnets) {
		v6 := v6Subnets[index]
		cidr6 := v6.String()
		f.CIDRv6 = &cidr6

		gw6 := p.GatewayV6
		if gw6 == "" {
			ip, err := ipaddr.GetIndexedIP(v6, 1)
			if err != nil {
				return store.NetworkFields{}, err
			}
			gw6 = ip.String()
		}
		f.GatewayV6 = &gw6
	}

	if p.VPN {
		f.DNS = ""
		vlan := p.VLANStart + index
		f.VLAN = &vlan
		f.Bridge = fmt.Sprintf("br%d", vlan)

		vpnPrivate, err := ipaddr.VPNPrivateAddress(subnet)
		if err != nil {
			return store.NetworkFields{}, err
		}
		vpnPrivateStr := vpnPrivate.String()
		f.VPNPrivateAddress = &vpnPrivateStr

		port := p.VPNStart + index
		f.VPNPublicPort = &port
	}

	return f, nil
}

func (e *Engine) materializeFixedIPs(ctx context.Context, n *model.Network, p CreateNetworksParams) error {
	_, subnet, err := net.ParseCIDR(n.CIDR)
	if err != nil {
		return errs.Wrap(err, errs.KindInvalidArgument, "re-parsing stored cidr %s", n.CIDR)
	}

	size := ipaddr.RangeSize(subnet)

	var reserved ipaddr.ReservedSlots
	if n.IsVLAN() {
		reserved = ipaddr.VLANReservedSlots(p.CntVPNClients)
	} else {
		reserved = ipaddr.BaseReservedSlots()
	}

	for offset := int64(0); offset < size; offset++ {
		ip, err := ipaddr.GetIndexedIP(subnet, offset)
		if err != nil {
			return err
		}
		isReserved := offset < int64(reserved.Bottom) || offset >= size-int64(reserved.Top)
		if _, err := e.Store.FixedIPCreate(ctx, n.ID, ip.String(), isReserved); err != nil {
			return err
		}
	}
	return nil
}
