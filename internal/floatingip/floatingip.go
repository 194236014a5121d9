// Package floatingip implements the floating-IP subsystem:
// allocate/associate/disassociate/deallocate against the deployment pool,
// the auto-assign flow composed onto allocate_for_instance/
// deallocate_for_instance, and startup reconciliation of already-bound
// addresses. Composed onto the FlatDHCP and VLAN policies only — Flat has
// no floating-IP capability.
package floatingip

import (
	"context"
	"net"

	"nethost.io/nethost/internal/driver"
	"nethost.io/nethost/internal/engine/errs"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/store"
)

// parseAddress turns a stored address string into a net.IP, failing with
// invalid-argument rather than silently passing nil to the Driver.
func parseAddress(address string) (net.IP, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, errs.New(errs.KindInvalidArgument, "invalid ip address %q", address)
	}
	return ip, nil
}

// QuotaChecker is the narrow external contract this package checks before
// consuming a floating IP from the pool. Quota accounting itself is out
// of scope — the core only consults this interface.
type QuotaChecker interface {
	CheckFloatingIPQuota(ctx context.Context, projectID string) error
}

// Service bundles the Store/Driver/QuotaChecker contracts the floating-IP
// operations are written against.
type Service struct {
	Store   store.Store
	Driver  driver.Driver
	Quota   QuotaChecker
	Options Options
}

// Options carries the floating-IP-specific configuration.
type Options struct {
	// Host is this network-host's configured identifier, consulted for
	// startup reconciliation and bind/forward bookkeeping.
	Host string
	// AutoAssign mirrors the auto_assign_floating_ip option. This is a
	// plain boolean — never probed with a presence check.
	AutoAssign bool
}

func New(st store.Store, drv driver.Driver, quota QuotaChecker, opts Options) *Service {
	return &Service{Store: st, Driver: drv, Quota: quota, Options: opts}
}

// Allocate implements allocate_floating_ip(project): check quota, then pop
// a free address from the pool. Fails with quota-exceeded before any
// mutation.
func (s *Service) Allocate(ctx context.Context, projectID string) (string, error) {
	if s.Quota != nil {
		if err := s.Quota.CheckFloatingIPQuota(ctx, projectID); err != nil {
			return "", errs.Wrap(err, errs.KindQuotaExceeded, "floating ip quota check failed for project %s", projectID)
		}
	}
	return s.Store.FloatingIPAllocateAddress(ctx, projectID)
}

// Deallocate implements deallocate_floating_ip: return floatingAddr to the
// pool. Requires no active association.
func (s *Service) Deallocate(ctx context.Context, floatingAddr string) error {
	fip, err := s.Store.FloatingIPGetByAddress(ctx, floatingAddr)
	if err != nil {
		return err
	}
	if fip.FixedIPID != nil {
		return errs.New(errs.KindConflict, "floating ip %s is still associated, disassociate first", floatingAddr)
	}
	return s.Store.FloatingIPDeallocate(ctx, floatingAddr)
}

// Associate implements associate_floating_ip: link the rows, then have the
// Driver bind the address to the interface and install the forward.
func (s *Service) Associate(ctx context.Context, floatingAddr, fixedAddr string) error {
	fip, err := s.Store.FloatingIPGetByAddress(ctx, floatingAddr)
	if err != nil {
		return err
	}
	if fip.FixedIPID != nil {
		return errs.New(errs.KindConflict, "floating ip %s is already associated", floatingAddr)
	}

	if err := s.Store.FloatingIPFixedIPAssociate(ctx, floatingAddr, fixedAddr); err != nil {
		return err
	}

	floatingIP, err := parseAddress(floatingAddr)
	if err != nil {
		return err
	}
	fixedIP, err := parseAddress(fixedAddr)
	if err != nil {
		return err
	}

	if err := s.Driver.BindFloatingIP(ctx, floatingIP, false); err != nil {
		return err
	}
	return s.Driver.EnsureFloatingForward(ctx, floatingIP, fixedIP)
}

// Disassociate implements disassociate_floating_ip: unlink the rows, then
// have the Driver unbind the address and remove the forward. Idempotent on
// an already-disassociated address.
func (s *Service) Disassociate(ctx context.Context, floatingAddr string) error {
	fip, err := s.Store.FloatingIPGetByAddress(ctx, floatingAddr)
	if err != nil {
		return err
	}
	if fip.FixedIPID == nil {
		return nil
	}

	fixedAddr, err := s.Store.FloatingIPDisassociate(ctx, floatingAddr)
	if err != nil {
		return err
	}

	floatingIP, err := parseAddress(floatingAddr)
	if err != nil {
		return err
	}
	fixedIP, err := parseAddress(fixedAddr)
	if err != nil {
		return err
	}

	if err := s.Driver.UnbindFloatingIP(ctx, floatingIP); err != nil {
		return err
	}
	return s.Driver.RemoveFloatingForward(ctx, floatingIP, fixedIP)
}

// AutoAssign implements the auto-assign flow composed onto
// allocate_for_instance: when Options.AutoAssign is set, allocate a
// floating IP, mark it auto_assigned, and associate it with the instance's
// first fixed IP.
func (s *Service) AutoAssign(ctx context.Context, projectID string, instanceFixedIPs []*model.FixedIP) error {
	if !s.Options.AutoAssign || len(instanceFixedIPs) == 0 {
		return nil
	}

	address, err := s.Allocate(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.Store.FloatingIPSetAutoAssigned(ctx, address); err != nil {
		return err
	}
	return s.Associate(ctx, address, instanceFixedIPs[0].Address)
}

// ReleaseAutoAssigned implements the deallocate_for_instance half of the
// auto-assign flow: release every auto_assigned=true floating IP
// associated with any of the instance's fixed IPs.
func (s *Service) ReleaseAutoAssigned(ctx context.Context, instanceFixedIPs []*model.FixedIP) error {
	for _, fip := range instanceFixedIPs {
		floating, err := s.floatingForFixed(ctx, fip.Address)
		if err != nil {
			return err
		}
		if floating == nil || !floating.AutoAssigned {
			continue
		}
		if err := s.Disassociate(ctx, floating.Address); err != nil {
			return err
		}
		if err := s.Deallocate(ctx, floating.Address); err != nil {
			return err
		}
	}
	return nil
}

// floatingForFixed is a small helper scanning this host's bound floating
// IPs for one associated with fixedAddr. The Store contract has no direct
// "get floating ip by fixed address" lookup, so reconciliation and
// auto-assign release both go through FloatingIPGetAllByHost.
func (s *Service) floatingForFixed(ctx context.Context, fixedAddr string) (*model.FloatingIP, error) {
	owned, err := s.Store.FloatingIPGetAllByHost(ctx, s.Options.Host)
	if err != nil {
		return nil, err
	}
	fip, err := s.Store.FixedIPGetByAddress(ctx, fixedAddr)
	if err != nil {
		return nil, err
	}
	for _, f := range owned {
		if f.FixedIPID != nil && *f.FixedIPID == fip.ID {
			return f, nil
		}
	}
	return nil, nil
}

// ReconcileOnStartup re-applies bind and ensure_forward for every
// already-associated FloatingIP this host owns, ignoring "already bound"
// failures since Driver side effects are treated as idempotent.
func (s *Service) ReconcileOnStartup(ctx context.Context) error {
	owned, err := s.Store.FloatingIPGetAllByHost(ctx, s.Options.Host)
	if err != nil {
		return err
	}
	for _, fip := range owned {
		if fip.FixedIPID == nil {
			continue
		}
		fixed, err := s.Store.FixedIPGetByID(ctx, *fip.FixedIPID)
		if err != nil {
			return err
		}

		floatingIP, err := parseAddress(fip.Address)
		if err != nil {
			return err
		}
		fixedIP, err := parseAddress(fixed.Address)
		if err != nil {
			return err
		}

		if err := s.Driver.BindFloatingIP(ctx, floatingIP, true); err != nil {
			return err
		}
		if err := s.Driver.EnsureFloatingForward(ctx, floatingIP, fixedIP); err != nil {
			return err
		}
	}
	return nil
}
