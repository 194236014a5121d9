package iputils

import (
	"crypto/sha512"
	"fmt"

	"github.com/coreos/go-iptables/iptables"
)

const (
	maxChainLen = 28
	chainPrefix = "NETHOST-"
	MaxHashLen  = sha512.Size * 2
)

// FormatChainName derives a deterministic, length-bounded iptables chain
// name for a floating IP or metadata NAT rule from a rule name and id.
func FormatChainName(name, id string) string {
	return MustFormatChainNameWithPrefix(name, id, "")
}

// FormatComment returns a comment attached to a NAT rule so `iptables -L`
// output can be traced back to the floating IP or network that owns it.
func FormatComment(name, id string) string {
	return fmt.Sprintf("name %q id %q", name, id)
}

// MustFormatChainNameWithPrefix is like FormatChainName but inserts prefix
// between the fixed chainPrefix and the hash. Panics if prefix alone would
// overflow the chain name length.
func MustFormatChainNameWithPrefix(name, id, prefix string) string {
	return MustFormatHashWithPrefix(maxChainLen, chainPrefix+prefix, name+id)
}

// MustFormatHashWithPrefix returns a string of exactly length bytes that
// starts with prefix and is otherwise filled with a hash of toHash.
func MustFormatHashWithPrefix(length int, prefix, toHash string) string {
	if len(prefix) >= length || length > MaxHashLen {
		panic("invalid length")
	}
	sum := sha512.Sum512([]byte(toHash))
	return fmt.Sprintf("%s%x", prefix, sum)[:length]
}

// SupportsIPTables reports whether the host can drive netfilter through the
// iptables API. The netlink driver does not consult it: its NAT calls
// return an error when iptables cannot be located.
func SupportsIPTables() bool {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return false
	}
	_, err = ipt.ChainExists("filter", "INPUT")
	return err == nil
}
