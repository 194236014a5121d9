package ipaddr

import (
	"fmt"
	"math/big"
	"math/bits"
	"net"

	"nethost.io/nethost/internal/engine/errs"
)

// Subnet carves parentCIDR into numNetworks contiguous blocks of
// networkSize addresses each. networkSize must be a power of two;
// callers must reject non-power-of-two sizes by construction, so this
// function treats a non-power-of-two as a programmer error (invalid
// argument), not a recoverable condition.
func Subnet(parentCIDR string, numNetworks, networkSize int) ([]*net.IPNet, error) {
	if numNetworks <= 0 || networkSize <= 0 {
		return nil, errs.New(errs.KindInvalidArgument, "num_networks and network_size must be positive")
	}
	if bits.OnesCount(uint(networkSize)) != 1 {
		return nil, errs.New(errs.KindInvalidArgument, "network_size %d is not a power of two", networkSize)
	}

	_, parent, err := net.ParseCIDR(parentCIDR)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindInvalidArgument, "parsing parent cidr %q", parentCIDR)
	}

	parentSize := RangeSize(parent)
	needed := int64(numNetworks) * int64(networkSize)
	if needed > parentSize {
		return nil, errs.New(errs.KindInvalidArgument,
			"parent cidr %s holds %d addresses, need %d for %d networks of size %d",
			parentCIDR, parentSize, needed, numNetworks, networkSize)
	}

	significantBits := 32 - bits.TrailingZeros(uint(networkSize))
	parentBase := bigForIP(parent.IP)

	out := make([]*net.IPNet, 0, numNetworks)
	for i := 0; i < numNetworks; i++ {
		subnetIP := addIPOffset(parentBase, int64(i)*int64(networkSize))
		mask := net.CIDRMask(significantBits, 32)
		out = append(out, &net.IPNet{IP: subnetIP.To4(), Mask: mask})
	}
	return out, nil
}

// SubnetV6 carves parentCIDR into numNetworks contiguous /64 blocks, one
// per network. parent must be at least as wide as numNetworks 64-bit
// blocks.
func SubnetV6(parentCIDR string, numNetworks int) ([]*net.IPNet, error) {
	if numNetworks <= 0 {
		return nil, errs.New(errs.KindInvalidArgument, "num_networks must be positive")
	}

	_, parent, err := net.ParseCIDR(parentCIDR)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindInvalidArgument, "parsing parent ipv6 cidr %q", parentCIDR)
	}
	ones, bitlen := parent.Mask.Size()
	if bitlen != 128 {
		return nil, errs.New(errs.KindInvalidArgument, "parent cidr %q is not an ipv6 prefix", parentCIDR)
	}
	if ones > 64 {
		return nil, errs.New(errs.KindInvalidArgument, "parent prefix %q is narrower than /64", parentCIDR)
	}
	available := int64(1) << uint(64-ones)
	if int64(numNetworks) > available {
		return nil, errs.New(errs.KindInvalidArgument,
			"parent prefix %s holds %d /64 blocks, need %d", parentCIDR, available, numNetworks)
	}

	parentBase := bigForIP(parent.IP)
	blockSize := new(big.Int).Lsh(big.NewInt(1), 64) // addresses per /64

	out := make([]*net.IPNet, 0, numNetworks)
	for i := 0; i < numNetworks; i++ {
		offset := new(big.Int).Mul(blockSize, big.NewInt(int64(i)))
		base := new(big.Int).Add(parentBase, offset)
		ip := addIPOffsetBig(base)
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(64, 128)})
	}
	return out, nil
}

// VLANPrecondition checks the VLAN-mode precondition: assigned VLAN ids
// must stay within the 802.1Q range.
func VLANPrecondition(numNetworks, vlanStart int) error {
	if numNetworks+vlanStart > 4094 {
		return errs.New(errs.KindInvalidArgument,
			"vlan_start %d + num_networks %d exceeds the maximum vlan id 4094", vlanStart, numNetworks)
	}
	return nil
}

// Fields are the per-subnet values create_networks derives.
type Fields struct {
	CIDR      *net.IPNet
	Netmask   string
	Gateway   net.IP
	Broadcast net.IP
	DHCPStart net.IP
}

// DeriveFields computes gateway (subnet[1]), dhcp_start (subnet[2], or
// subnet[3] in vpn mode since subnet[2] is the vpn private address) and
// broadcast (subnet[-1]) for one carved subnet.
func DeriveFields(subnet *net.IPNet, vpnMode bool) (*Fields, error) {
	size := RangeSize(subnet)
	if size < 4 {
		return nil, errs.New(errs.KindInvalidArgument, "subnet %s too small to hold reserved slots", subnet)
	}

	gateway, err := GetIndexedIP(subnet, 1)
	if err != nil {
		return nil, err
	}

	dhcpIndex := int64(2)
	if vpnMode {
		dhcpIndex = 3
	}
	dhcpStart, err := GetIndexedIP(subnet, dhcpIndex)
	if err != nil {
		return nil, err
	}

	broadcast, err := GetIndexedIP(subnet, size-1)
	if err != nil {
		return nil, err
	}

	ones, _ := subnet.Mask.Size()
	mask := net.CIDRMask(ones, 32)
	return &Fields{
		CIDR:      subnet,
		Netmask:   net.IP(mask).String(),
		Gateway:   gateway,
		Broadcast: broadcast,
		DHCPStart: dhcpStart,
	}, nil
}

// SubnetLabel returns "{label}_{i}" when there is more than one network,
// or the bare label otherwise.
func SubnetLabel(label string, index, numNetworks int) string {
	if numNetworks > 1 {
		return fmt.Sprintf("%s_%d", label, index)
	}
	return label
}

// VPNPrivateAddress returns subnet[2], the vpn endpoint address reserved
// ahead of the dhcp_start slot in vpn mode.
func VPNPrivateAddress(subnet *net.IPNet) (net.IP, error) {
	return GetIndexedIP(subnet, 2)
}
