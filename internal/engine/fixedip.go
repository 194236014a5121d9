package engine

import (
	"context"
	"net"

	"github.com/gofrs/uuid"

	"nethost.io/nethost/internal/engine/errs"
	"nethost.io/nethost/internal/model"
)

// AllocateFixedIP claims a fixed IP for instanceID on network. When vpn is true (VLAN policy only),
// network.VPNPrivateAddress is associated directly instead of popping from
// the pool. refreshDHCP controls step 4 (FlatDHCP/VLAN only) — callers
// pass false under the fake_network option or for the Flat policy, which
// never touches DHCP.
func (e *Engine) AllocateFixedIP(ctx context.Context, instanceID uuid.UUID, network *model.Network, vpn, refreshDHCP bool) (string, error) {
	return e.allocateFixedIP(ctx, instanceID, network, vpn, "", refreshDHCP)
}

// AllocateFixedIPAt implements the "pinned address" path of
// allocate_fixed_ip_for_instance: the caller already validated (via
// ValidateNetworks) that requestedAddress belongs to network, is not
// reserved, and is not already allocated, so this claims it directly
// instead of popping from the free pool.
func (e *Engine) AllocateFixedIPAt(ctx context.Context, instanceID uuid.UUID, network *model.Network, requestedAddress string, refreshDHCP bool) (string, error) {
	if requestedAddress == "" {
		return "", errs.New(errs.KindInvalidArgument, "requested address is empty")
	}
	return e.allocateFixedIP(ctx, instanceID, network, false, requestedAddress, refreshDHCP)
}

func (e *Engine) allocateFixedIP(ctx context.Context, instanceID uuid.UUID, network *model.Network, vpn bool, requestedAddress string, refreshDHCP bool) (string, error) {
	var address string

	switch {
	case vpn:
		if network.VPNPrivateAddress == nil {
			return "", errs.New(errs.KindInvalidArgument, "network %s has no vpn_private_address", network.ID)
		}
		address = *network.VPNPrivateAddress
		if err := e.Store.FixedIPAssociate(ctx, address, instanceID); err != nil {
			return "", err
		}
	case requestedAddress != "":
		address = requestedAddress
		if err := e.Store.FixedIPAssociate(ctx, address, instanceID); err != nil {
			return "", err
		}
	default:
		claimed, err := e.Store.FixedIPAssociatePool(ctx, network.ID, instanceID)
		if err != nil {
			return "", err
		}
		address = claimed
	}

	vif, err := e.Store.VirtualInterfaceGetByInstanceAndNetwork(ctx, instanceID, network.ID)
	if err != nil {
		return "", err
	}
	allocated := true
	if err := e.Store.FixedIPUpdate(ctx, address, &allocated, nil, setVIF(vif.ID)); err != nil {
		return "", err
	}

	if refreshDHCP && !e.Options.FakeNetwork {
		if err := e.Driver.UpdateDHCP(ctx, network); err != nil {
			return "", err
		}
	}

	return address, nil
}

// ValidateNetworks implements validate_networks: before any VIF is created,
// verify every requested (network, fixed_ip) pairing in requested actually
// belongs to that network, is not reserved, and is not already allocated
// to another instance. Called once up front so a bad pinned address fails
// the whole request before anything is created, instead of failing
// partway through the pinned-address path.
func (e *Engine) ValidateNetworks(ctx context.Context, requested map[uuid.UUID]string) error {
	for networkID, address := range requested {
		if address == "" {
			continue
		}
		ip, err := parseAddress(address)
		if err != nil {
			return err
		}

		network, err := e.Store.NetworkGet(ctx, networkID)
		if err != nil {
			return err
		}
		_, cidr, err := net.ParseCIDR(network.CIDR)
		if err != nil {
			return errs.New(errs.KindInvalidArgument, "network %s has invalid cidr %q", network.ID, network.CIDR)
		}
		if !cidr.Contains(ip) {
			return errs.New(errs.KindInvalidArgument, "address %s is not within network %s (%s)", address, network.ID, network.CIDR)
		}

		fip, err := e.Store.FixedIPGetByAddress(ctx, address)
		if err != nil {
			return errs.Wrap(err, errs.KindInvalidArgument, "address %s is not a known fixed ip of network %s", address, network.ID)
		}
		if fip.NetworkID != networkID {
			return errs.New(errs.KindInvalidArgument, "address %s belongs to network %s, not %s", address, fip.NetworkID, networkID)
		}
		if fip.Reserved {
			return errs.New(errs.KindConflict, "address %s is reserved", address)
		}
		if fip.Allocated {
			return errs.New(errs.KindConflict, "address %s is already allocated", address)
		}
	}
	return nil
}

// DeallocateFixedIP clears allocated and virtual_interface_id on address.
// disassociateNow additionally clears instance_id immediately — set by
// the Flat policy, which has no lease grace period; FlatDHCP/VLAN pass
// false and leave the instance association for the lease/release state
// machine or the sweeper to clear later.
func (e *Engine) DeallocateFixedIP(ctx context.Context, address string, disassociateNow bool) error {
	allocated := false
	if err := e.Store.FixedIPUpdate(ctx, address, &allocated, nil, clearVIF()); err != nil {
		return err
	}
	if disassociateNow {
		if _, err := e.Store.FixedIPDisassociate(ctx, address); err != nil {
			return err
		}
	}
	return nil
}

// setVIF and clearVIF build the **uuid.UUID values FixedIPUpdate expects
// for its virtualInterfaceID parameter: setVIF points at a populated id,
// clearVIF points at a nil one, and both are distinct from the nil outer
// pointer that means "leave the column untouched".
func setVIF(id uuid.UUID) **uuid.UUID {
	p := &id
	return &p
}

func clearVIF() **uuid.UUID {
	var p *uuid.UUID
	return &p
}

// parseAddress turns a requested address string into a net.IP for
// ValidateNetworks. The floating-IP package has its own copy.
func parseAddress(address string) (net.IP, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, errs.New(errs.KindInvalidArgument, "invalid ip address %q", address)
	}
	return ip, nil
}
