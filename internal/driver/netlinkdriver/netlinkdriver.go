// Package netlinkdriver is the real driver.Driver implementation: it
// programs Linux bridges and VLAN sub-interfaces with
// github.com/vishvananda/netlink, flips proxy_arp/ip_forward with
// internal/utils/sysctl, and manages floating-IP NAT with
// github.com/coreos/go-iptables.
package netlinkdriver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/coreos/go-iptables/iptables"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"nethost.io/nethost/internal/driver"
	"nethost.io/nethost/internal/driver/netlinksafe"
	"nethost.io/nethost/internal/log"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/utils/iputils"
	"nethost.io/nethost/internal/utils/sysctl"
)

const metadataIP = "169.254.169.254"

// Config configures filesystem locations the driver writes DHCP/RA state
// to, and the metadata service's real listen address.
type Config struct {
	DHCPLeaseDir   string
	RAConfDir      string
	MetadataTarget string
	MetadataPort   int
	PublicIface    string
}

func (c Config) withDefaults() Config {
	if c.DHCPLeaseDir == "" {
		c.DHCPLeaseDir = "/var/lib/nethost/dhcp"
	}
	if c.RAConfDir == "" {
		c.RAConfDir = "/var/lib/nethost/ra"
	}
	if c.MetadataPort == 0 {
		c.MetadataPort = 8775
	}
	return c
}

// Driver is the Linux netlink/iptables backed driver.Driver.
type Driver struct {
	cfg Config
}

// New returns a Driver. Config zero values are filled with defaults.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg.withDefaults()}
}

var _ driver.Driver = (*Driver)(nil)

func (d *Driver) InitHost(ctx context.Context) error {
	if err := os.MkdirAll(d.cfg.DHCPLeaseDir, 0o755); err != nil {
		return fmt.Errorf("preparing dhcp lease dir: %w", err)
	}
	if err := os.MkdirAll(d.cfg.RAConfDir, 0o755); err != nil {
		return fmt.Errorf("preparing ra conf dir: %w", err)
	}
	return d.MetadataForward(ctx)
}

func (d *Driver) EnsureMetadataIP(ctx context.Context) error {
	h, err := netlinksafe.NewHandle(netlink.FAMILY_V4)
	if err != nil {
		return err
	}
	defer h.Close()

	lo, err := h.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("looking up loopback: %w", err)
	}
	addr := &netlink.Addr{IPNet: &net.IPNet{IP: net.ParseIP(metadataIP), Mask: net.CIDRMask(32, 32)}}
	if err := h.AddrAdd(lo, addr); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("assigning metadata ip to loopback: %w", err)
	}
	return nil
}

func (d *Driver) MetadataForward(ctx context.Context) error {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return fmt.Errorf("locating iptables: %w", err)
	}
	target := fmt.Sprintf("%s:%d", d.cfg.MetadataTarget, d.cfg.MetadataPort)
	if d.cfg.MetadataTarget == "" {
		target = fmt.Sprintf("127.0.0.1:%d", d.cfg.MetadataPort)
	}
	return ipt.AppendUnique("nat", "PREROUTING",
		"-d", metadataIP, "-p", "tcp", "--dport", "80",
		"-j", "DNAT", "--to-destination", target,
		"-m", "comment", "--comment", iputils.FormatComment("metadata", "forward"),
	)
}

func (d *Driver) EnsureBridge(ctx context.Context, bridge, iface string, network *model.Network) error {
	h, err := netlinksafe.NewHandle()
	if err != nil {
		return err
	}
	defer h.Close()

	br, err := ensureBridgeDevice(h, bridge)
	if err != nil {
		return err
	}

	if iface != "" {
		if err := enslave(h, br, iface); err != nil {
			return err
		}
	}

	if network != nil {
		if err := assignGateway(h, br, network.Gateway, network.Netmask); err != nil {
			return err
		}
		if _, err := sysctl.Sysctl(fmt.Sprintf("net/ipv4/conf/%s/proxy_arp", bridge), "1"); err != nil {
			log.Warnf("enabling proxy_arp on %s: %v", bridge, err)
		}
	}
	if _, err := sysctl.Sysctl("net/ipv4/ip_forward", "1"); err != nil {
		log.Warnf("enabling ip_forward: %v", err)
	}
	return nil
}

func (d *Driver) EnsureVLANBridge(ctx context.Context, vlan int, bridge, iface string, network *model.Network) error {
	h, err := netlinksafe.NewHandle()
	if err != nil {
		return err
	}
	defer h.Close()

	parent, err := h.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("looking up vlan parent %q: %w", iface, err)
	}

	vlanName := fmt.Sprintf("vlan%d", vlan)
	vlanLink := &netlink.Vlan{
		LinkAttrs: netlink.LinkAttrs{Name: vlanName, ParentIndex: parent.Attrs().Index},
		VlanId:    vlan,
	}
	if err := h.LinkAdd(vlanLink); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("creating vlan device %s: %w", vlanName, err)
	}
	if l, err := h.LinkByName(vlanName); err == nil {
		_ = h.LinkSetUp(l)
	}

	return d.EnsureBridge(ctx, bridge, vlanName, network)
}

func (d *Driver) EnsureVLANForward(ctx context.Context, ip net.IP, port int, privateAddr net.IP) error {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return fmt.Errorf("locating iptables: %w", err)
	}
	comment := iputils.FormatComment("vpn", ip.String())
	return ipt.AppendUnique("nat", "PREROUTING",
		"-d", ip.String(), "-p", "udp", "--dport", fmt.Sprintf("%d", port),
		"-j", "DNAT", "--to-destination", privateAddr.String(),
		"-m", "comment", "--comment", comment,
	)
}

// UpdateDHCP makes sure network's dnsmasq hosts file exists (created empty
// when absent) and signals the running dnsmasq process to reload it. It
// does not write any host-reservation entries into that file, so a
// disassociated address is not removed from it here.
func (d *Driver) UpdateDHCP(ctx context.Context, network *model.Network) error {
	path := filepath.Join(d.cfg.DHCPLeaseDir, network.ID.String()+".hosts")
	// Callers own the actual host/address enumeration (the engine knows
	// the fixed-ip set); UpdateDHCP's job here is the reload mechanics.
	if _, err := os.Stat(path); err != nil {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return fmt.Errorf("creating dhcp hosts file: %w", err)
		}
	}
	return reloadProcess("dnsmasq", network.Bridge)
}

// UpdateRA rewrites the radvd configuration stanza for network's IPv6
// prefix and reloads radvd.
func (d *Driver) UpdateRA(ctx context.Context, network *model.Network) error {
	if !network.HasIPv6() {
		return nil
	}
	path := filepath.Join(d.cfg.RAConfDir, network.ID.String()+".conf")
	body := fmt.Sprintf("interface %s {\n  AdvSendAdvert on;\n  prefix %s {};\n};\n", network.Bridge, *network.CIDRv6)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing radvd conf: %w", err)
	}
	return reloadProcess("radvd", network.Bridge)
}

func (d *Driver) BindFloatingIP(ctx context.Context, address net.IP, allowAlreadyBound bool) error {
	h, err := netlinksafe.NewHandle()
	if err != nil {
		return err
	}
	defer h.Close()

	iface := d.cfg.PublicIface
	if iface == "" {
		iface = "eth0"
	}
	link, err := h.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("looking up public interface %q: %w", iface, err)
	}
	addr := &netlink.Addr{IPNet: &net.IPNet{IP: address, Mask: net.CIDRMask(32, 32)}}
	if err := h.AddrAdd(link, addr); err != nil {
		if errors.Is(err, unix.EEXIST) && allowAlreadyBound {
			return nil
		}
		return fmt.Errorf("binding floating ip %s: %w", address, err)
	}
	return nil
}

func (d *Driver) UnbindFloatingIP(ctx context.Context, address net.IP) error {
	h, err := netlinksafe.NewHandle()
	if err != nil {
		return err
	}
	defer h.Close()

	iface := d.cfg.PublicIface
	if iface == "" {
		iface = "eth0"
	}
	link, err := h.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("looking up public interface %q: %w", iface, err)
	}
	addr := &netlink.Addr{IPNet: &net.IPNet{IP: address, Mask: net.CIDRMask(32, 32)}}
	if err := h.AddrDel(link, addr); err != nil && !errors.Is(err, unix.EADDRNOTAVAIL) {
		return fmt.Errorf("unbinding floating ip %s: %w", address, err)
	}
	return nil
}

func (d *Driver) EnsureFloatingForward(ctx context.Context, floating, fixed net.IP) error {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return fmt.Errorf("locating iptables: %w", err)
	}
	comment := iputils.FormatComment("floating", floating.String())

	if err := ipt.AppendUnique("nat", "PREROUTING",
		"-d", floating.String(), "-j", "DNAT", "--to-destination", fixed.String(),
		"-m", "comment", "--comment", comment,
	); err != nil {
		return err
	}
	return ipt.AppendUnique("nat", "POSTROUTING",
		"-s", fixed.String(), "-j", "SNAT", "--to-source", floating.String(),
		"-m", "comment", "--comment", comment,
	)
}

func (d *Driver) RemoveFloatingForward(ctx context.Context, floating, fixed net.IP) error {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return fmt.Errorf("locating iptables: %w", err)
	}
	comment := iputils.FormatComment("floating", floating.String())

	err1 := ipt.Delete("nat", "PREROUTING", "-d", floating.String(), "-j", "DNAT", "--to-destination", fixed.String(), "-m", "comment", "--comment", comment)
	err2 := ipt.Delete("nat", "POSTROUTING", "-s", fixed.String(), "-j", "SNAT", "--to-source", floating.String(), "-m", "comment", "--comment", comment)
	if err1 != nil && !isNotExist(err1) {
		return err1
	}
	if err2 != nil && !isNotExist(err2) {
		return err2
	}
	return nil
}

func (d *Driver) Plug(ctx context.Context, vif *model.VirtualInterface, network *model.Network) error {
	h, err := netlinksafe.NewHandle()
	if err != nil {
		return err
	}
	defer h.Close()

	if _, err := h.LinkByName(network.Bridge); err != nil {
		return fmt.Errorf("plug: bridge %s not present for vif %s: %w", network.Bridge, vif.MACAddress, err)
	}
	return nil
}

func (d *Driver) Unplug(ctx context.Context, vif *model.VirtualInterface, network *model.Network) error {
	return nil
}

func ensureBridgeDevice(h netlinksafe.Handle, name string) (*netlink.Bridge, error) {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	br := &netlink.Bridge{LinkAttrs: attrs}

	if err := h.LinkAdd(br); err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, fmt.Errorf("creating bridge %q: %w", name, err)
	}

	link, err := h.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("looking up bridge %q: %w", name, err)
	}
	br, ok := link.(*netlink.Bridge)
	if !ok {
		return nil, fmt.Errorf("%q exists but is not a bridge", name)
	}
	if err := h.LinkSetUp(br); err != nil {
		return nil, fmt.Errorf("bringing up bridge %q: %w", name, err)
	}
	return br, nil
}

func enslave(h netlinksafe.Handle, br *netlink.Bridge, iface string) error {
	link, err := h.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("looking up bridge member %q: %w", iface, err)
	}
	if err := h.LinkSetMaster(link, br); err != nil {
		return fmt.Errorf("enslaving %q to %q: %w", iface, br.Name, err)
	}
	return h.LinkSetUp(link)
}

func assignGateway(h netlinksafe.Handle, br *netlink.Bridge, gateway, netmask string) error {
	ip := net.ParseIP(gateway)
	if ip == nil {
		return fmt.Errorf("invalid gateway address %q", gateway)
	}
	maskIP := net.ParseIP(netmask)
	if maskIP == nil {
		return fmt.Errorf("invalid netmask %q", netmask)
	}
	mask := net.IPMask(maskIP.To4())

	existing, err := h.AddrList(br, netlink.FAMILY_V4)
	if err != nil {
		return fmt.Errorf("listing bridge addresses: %w", err)
	}
	for _, a := range existing {
		if a.IP.Equal(ip) {
			return nil
		}
	}
	return h.AddrAdd(br, &netlink.Addr{IPNet: &net.IPNet{IP: ip, Mask: mask}})
}

func reloadProcess(name, tag string) error {
	out, err := exec.Command("pgrep", "-f", fmt.Sprintf("%s.*%s", name, tag)).Output()
	if err != nil || len(out) == 0 {
		return nil
	}
	return exec.Command("pkill", "-HUP", "-f", fmt.Sprintf("%s.*%s", name, tag)).Run()
}

func isNotExist(err error) bool {
	var e *iptables.Error
	return errors.As(err, &e) && e.IsNotExist()
}
