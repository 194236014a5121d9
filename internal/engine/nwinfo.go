package engine

import (
	"context"
	"net"

	"nethost.io/nethost/internal/ipaddr"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/utils/sets"
)

// IPInfo is one address entry in an InterfaceInfo's Ips/Ip6s list.
type IPInfo struct {
	IP      string
	Netmask string
	Enabled string
}

// NetworkDescriptor is the network-facing half of a network-info pair:
// everything a guest's network configuration needs about the segment
// itself, independent of the instance.
type NetworkDescriptor struct {
	ID       string
	Bridge   string
	CIDR     string
	CIDRv6   string
	Injected bool
}

// InterfaceInfo is the instance-facing half of a network-info pair: the
// VIF's addressing, reachable over NetworkDescriptor.
type InterfaceInfo struct {
	Label     string
	Gateway   string
	Gateway6  string
	Broadcast string
	MAC       string
	RXTXCap   int
	DNS       []string
	IPs       []IPInfo
	IP6s      []IPInfo
}

// NetworkInfo pairs one VIF's NetworkDescriptor and InterfaceInfo.
type NetworkInfo struct {
	Network   NetworkDescriptor
	Interface InterfaceInfo
}

// FilterNetworksForInstanceType implements the instance-type-driven network
// selection some instance types restrict themselves to: when it.NetworkIDs
// is non-empty, only networks whose id appears in that list are returned;
// an unrestricted instance type (nil or empty NetworkIDs, the default)
// passes every network through unchanged.
func FilterNetworksForInstanceType(it *model.InstanceType, networks []*model.Network) []*model.Network {
	if it == nil || len(it.NetworkIDs) == 0 {
		return networks
	}
	allowed := make(sets.Set[string], len(it.NetworkIDs))
	for _, id := range it.NetworkIDs {
		allowed.Insert(id.String())
	}
	filtered := make([]*model.Network, 0, len(networks))
	for _, n := range networks {
		if allowed.Has(n.ID.String()) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// GetInstanceNetworkInfo assembles, for every VIF of instance, the
// network descriptor and interface info the compute side hands to the
// guest (or injects into its image). The IPv6 global address, when the
// network carries a v6 prefix, is derived purely from (prefix, MAC,
// project) — no allocation step.
func (e *Engine) GetInstanceNetworkInfo(ctx context.Context, instance *model.Instance) ([]NetworkInfo, error) {
	vifs, err := e.Store.VirtualInterfaceGetByInstance(ctx, instance.ID)
	if err != nil {
		return nil, err
	}

	it, err := e.Store.InstanceTypeGetByID(ctx, instance.InstanceTypeID)
	if err != nil {
		return nil, err
	}
	rxtxCap := it.RXTXCap

	fixedIPs, err := e.Store.FixedIPGetByInstance(ctx, instance.ID)
	if err != nil {
		return nil, err
	}

	out := make([]NetworkInfo, 0, len(vifs))
	for _, vif := range vifs {
		network, err := e.Store.NetworkGet(ctx, vif.NetworkID)
		if err != nil {
			return nil, err
		}

		descriptor := NetworkDescriptor{
			ID:       network.ID.String(),
			Bridge:   network.Bridge,
			CIDR:     network.CIDR,
			Injected: network.Injected,
		}

		iface := InterfaceInfo{
			Label:     network.Label,
			Gateway:   network.Gateway,
			Broadcast: network.Broadcast,
			MAC:       vif.MACAddress,
			RXTXCap:   rxtxCap,
			DNS:       []string{network.DNS},
		}

		for _, fip := range fixedIPs {
			if fip.NetworkID != network.ID {
				continue
			}
			iface.IPs = append(iface.IPs, IPInfo{
				IP:      fip.Address,
				Netmask: network.Netmask,
				Enabled: "1",
			})
		}

		if network.HasIPv6() {
			descriptor.CIDRv6 = *network.CIDRv6
			if network.GatewayV6 != nil {
				iface.Gateway6 = *network.GatewayV6
			}

			mac, err := net.ParseMAC(vif.MACAddress)
			if err != nil {
				return nil, err
			}
			_, prefix, err := net.ParseCIDR(*network.CIDRv6)
			if err != nil {
				return nil, err
			}
			global, err := ipaddr.GlobalAddress(ipaddr.IPv6BackendEUI64, prefix, mac, instance.ProjectID)
			if err != nil {
				return nil, err
			}

			netmaskV6 := "64"
			if network.NetmaskV6 != nil {
				netmaskV6 = *network.NetmaskV6
			}
			iface.IP6s = append(iface.IP6s, IPInfo{
				IP:      global.String(),
				Netmask: netmaskV6,
				Enabled: "1",
			})
		}

		out = append(out, NetworkInfo{Network: descriptor, Interface: iface})
	}
	return out, nil
}
