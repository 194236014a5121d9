package ipaddr

import (
	"crypto/sha1"
	"net"

	"nethost.io/nethost/internal/engine/errs"
)

// IPv6Backend selects how the low 64 bits of a global IPv6 address are
// derived. Nova-network historically shipped both as pluggable backends;
// nethost keeps both for parity and defaults to EUI64.
type IPv6Backend string

const (
	// IPv6BackendEUI64 derives the interface identifier from the MAC
	// address per RFC 4291 (flip the universal/local bit, insert
	// ff:fe between the OUI and the NIC-specific half).
	IPv6BackendEUI64 IPv6Backend = "rfc2462"
	// IPv6BackendAccountIdentifier derives the interface identifier from
	// a hash of the project id instead of the MAC, so every instance in
	// a project shares the same low 64 bits.
	IPv6BackendAccountIdentifier IPv6Backend = "account_identifier"
)

// GlobalAddress derives the global IPv6 address for an interface from a
// /64 prefix, its MAC address and owning project, with no allocation
// step: IPv6 is never drawn from a pool.
func GlobalAddress(backend IPv6Backend, prefix *net.IPNet, mac net.HardwareAddr, projectID string) (net.IP, error) {
	ones, bitlen := prefix.Mask.Size()
	if bitlen != 128 || ones != 64 {
		return nil, errs.New(errs.KindInvalidArgument, "ipv6 prefix must be a /64, got %s", prefix)
	}

	var low [8]byte
	switch backend {
	case IPv6BackendAccountIdentifier:
		low = accountIdentifierSuffix(projectID)
	case IPv6BackendEUI64, "":
		var err error
		low, err = eui64Suffix(mac)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errs.New(errs.KindInvalidArgument, "unknown ipv6 backend %q", backend)
	}

	addr := make(net.IP, 16)
	copy(addr[:8], prefix.IP.To16()[:8])
	copy(addr[8:], low[:])
	return addr, nil
}

// eui64Suffix builds the RFC 4291 modified EUI-64 interface identifier
// from a 48-bit MAC address.
func eui64Suffix(mac net.HardwareAddr) ([8]byte, error) {
	var suffix [8]byte
	if len(mac) != 6 {
		return suffix, errs.New(errs.KindInvalidArgument, "mac address must be 6 bytes, got %d", len(mac))
	}
	suffix[0] = mac[0] ^ 0x02 // flip the universal/local bit
	suffix[1] = mac[1]
	suffix[2] = mac[2]
	suffix[3] = 0xff
	suffix[4] = 0xfe
	suffix[5] = mac[3]
	suffix[6] = mac[4]
	suffix[7] = mac[5]
	return suffix, nil
}

// accountIdentifierSuffix hashes projectID into a deterministic 64-bit
// suffix, so addresses sharing a project are derivable from the id alone.
func accountIdentifierSuffix(projectID string) [8]byte {
	sum := sha1.Sum([]byte(projectID))
	var suffix [8]byte
	copy(suffix[:], sum[:8])
	return suffix
}
