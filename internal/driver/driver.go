// Package driver defines the packet-forwarding backend contract the
// allocation engine and policy variants issue host-local commands against:
// bridge/VLAN device management, DHCP/RA config refresh, and the iptables
// rules that bind floating IPs. Two implementations are provided:
// netlinkdriver (real, Linux-only) and fakedriver (a noop honoring the
// fake_network configuration option used in tests and dry runs).
package driver

import (
	"context"
	"net"

	"nethost.io/nethost/internal/model"
)

// Driver is the narrow external contract for packet-forwarding backends.
// Every method is expected to be idempotent: the engine may call
// ensure_bridge or bind_floating_ip again after a crash without
// special-casing "already done".
type Driver interface {
	// InitHost prepares whatever host-wide state is needed before any
	// network is claimed (e.g. the metadata iptables chain).
	InitHost(ctx context.Context) error
	// EnsureMetadataIP makes 169.254.169.254 reachable on the local host.
	EnsureMetadataIP(ctx context.Context) error
	// MetadataForward installs the NAT rule redirecting metadata traffic
	// to the metadata service.
	MetadataForward(ctx context.Context) error

	// EnsureBridge creates or updates bridge, enslaving iface, optionally
	// assigning the network's gateway address.
	EnsureBridge(ctx context.Context, bridge, iface string, network *model.Network) error
	// EnsureVLANBridge creates the VLAN sub-interface of iface tagged
	// vlan and enslaves it under bridge.
	EnsureVLANBridge(ctx context.Context, vlan int, bridge, iface string, network *model.Network) error
	// EnsureVLANForward installs the NAT rule forwarding VPN traffic
	// arriving at ip:port to privateAddr.
	EnsureVLANForward(ctx context.Context, ip net.IP, port int, privateAddr net.IP) error

	// UpdateDHCP regenerates and reloads the DHCP lease configuration for
	// network.
	UpdateDHCP(ctx context.Context, network *model.Network) error
	// UpdateRA regenerates router-advertisement configuration for an
	// IPv6-enabled network.
	UpdateRA(ctx context.Context, network *model.Network) error

	// BindFloatingIP assigns address to the host's public interface.
	// allowAlreadyBound suppresses the "already present" error so
	// startup reconciliation can call this unconditionally.
	BindFloatingIP(ctx context.Context, address net.IP, allowAlreadyBound bool) error
	// UnbindFloatingIP removes address from the host's public interface.
	UnbindFloatingIP(ctx context.Context, address net.IP) error
	// EnsureFloatingForward installs the DNAT/SNAT pair routing floating
	// to fixed.
	EnsureFloatingForward(ctx context.Context, floating, fixed net.IP) error
	// RemoveFloatingForward tears down the rules EnsureFloatingForward
	// installed.
	RemoveFloatingForward(ctx context.Context, floating, fixed net.IP) error

	// Plug and Unplug are idempotent VIF attach/detach hooks: a no-op
	// plug (interface already attached) is distinguished from a hard
	// failure. Drivers implement them, but no engine, policy or host code
	// calls them.
	Plug(ctx context.Context, vif *model.VirtualInterface, network *model.Network) error
	Unplug(ctx context.Context, vif *model.VirtualInterface, network *model.Network) error
}
