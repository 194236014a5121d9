// Package fakedriver is a noop driver.Driver, selected when the
// fake_network configuration option is set. It lets the engine and policy
// layers run end-to-end (allocation, RPC fan-out, startup reconciliation)
// against memstore without touching host networking, and records every
// call for tests that want to assert on ordering.
package fakedriver

import (
	"context"
	"net"
	"sync"

	"nethost.io/nethost/internal/driver"
	"nethost.io/nethost/internal/model"
)

// Driver is a call-recording noop implementation of driver.Driver.
type Driver struct {
	mu    sync.Mutex
	Calls []string
}

// New returns an empty fake driver.
func New() *Driver {
	return &Driver{}
}

var _ driver.Driver = (*Driver)(nil)

func (d *Driver) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, call)
}

func (d *Driver) InitHost(ctx context.Context) error { d.record("init_host"); return nil }

func (d *Driver) EnsureMetadataIP(ctx context.Context) error {
	d.record("ensure_metadata_ip")
	return nil
}

func (d *Driver) MetadataForward(ctx context.Context) error {
	d.record("metadata_forward")
	return nil
}

func (d *Driver) EnsureBridge(ctx context.Context, bridge, iface string, network *model.Network) error {
	d.record("ensure_bridge:" + bridge)
	return nil
}

func (d *Driver) EnsureVLANBridge(ctx context.Context, vlan int, bridge, iface string, network *model.Network) error {
	d.record("ensure_vlan_bridge:" + bridge)
	return nil
}

func (d *Driver) EnsureVLANForward(ctx context.Context, ip net.IP, port int, privateAddr net.IP) error {
	d.record("ensure_vlan_forward:" + ip.String())
	return nil
}

func (d *Driver) UpdateDHCP(ctx context.Context, network *model.Network) error {
	d.record("update_dhcp:" + networkLabel(network))
	return nil
}

func (d *Driver) UpdateRA(ctx context.Context, network *model.Network) error {
	d.record("update_ra:" + networkLabel(network))
	return nil
}

func networkLabel(network *model.Network) string {
	if network == nil {
		return ""
	}
	return network.Label
}

func (d *Driver) BindFloatingIP(ctx context.Context, address net.IP, allowAlreadyBound bool) error {
	d.record("bind_floating_ip:" + address.String())
	return nil
}

func (d *Driver) UnbindFloatingIP(ctx context.Context, address net.IP) error {
	d.record("unbind_floating_ip:" + address.String())
	return nil
}

func (d *Driver) EnsureFloatingForward(ctx context.Context, floating, fixed net.IP) error {
	d.record("ensure_floating_forward:" + floating.String())
	return nil
}

func (d *Driver) RemoveFloatingForward(ctx context.Context, floating, fixed net.IP) error {
	d.record("remove_floating_forward:" + floating.String())
	return nil
}

func (d *Driver) Plug(ctx context.Context, vif *model.VirtualInterface, network *model.Network) error {
	d.record("plug:" + vif.MACAddress)
	return nil
}

func (d *Driver) Unplug(ctx context.Context, vif *model.VirtualInterface, network *model.Network) error {
	d.record("unplug:" + vif.MACAddress)
	return nil
}
