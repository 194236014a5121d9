// Package sqlstore is the production store.Store implementation, backed by
// gobuffalo/pop against PostgreSQL. It implements the same atomic-claim
// contracts memstore provides in tests, using a `SELECT ... FOR UPDATE SKIP
// LOCKED` transaction for pool claims and a conditional
// `UPDATE ... WHERE host IS NULL` for the host claim instead of an
// in-process mutex.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/gobuffalo/pop/v6"
	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/pkg/errors"

	"nethost.io/nethost/internal/engine/errs"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/store"
)

// postgres unique_violation, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// Store is the pop-backed persistence layer. It also implements the
// Migrator half of the schema-admin contract cmd/store drives.
type Store struct {
	conn *pop.Connection
}

// New wraps an already-open pop connection.
func New(conn *pop.Connection) *Store {
	return &Store{conn: conn}
}

var _ store.Store = (*Store)(nil)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (s *Store) NetworkCreateSafe(ctx context.Context, f store.NetworkFields) (*model.Network, error) {
	var existing model.Network
	err := s.conn.WithContext(ctx).Where("cidr = ?", f.CIDR).First(&existing)
	if err == nil {
		return nil, nil
	}
	if !isNotFound(err) {
		return nil, errors.Wrap(err, "checking for existing network")
	}

	n := &model.Network{
		Label:             f.Label,
		CIDR:              f.CIDR,
		CIDRv6:            f.CIDRv6,
		Netmask:           f.Netmask,
		NetmaskV6:         f.NetmaskV6,
		Gateway:           f.Gateway,
		GatewayV6:         f.GatewayV6,
		Broadcast:         f.Broadcast,
		DHCPStart:         f.DHCPStart,
		Bridge:            f.Bridge,
		BridgeInterface:   f.BridgeInterface,
		VLAN:              f.VLAN,
		VPNPublicAddress:  f.VPNPublicAddress,
		VPNPublicPort:     f.VPNPublicPort,
		VPNPrivateAddress: f.VPNPrivateAddress,
		DNS:               f.DNS,
		Injected:          f.Injected,
		MultiHost:         f.MultiHost,
	}
	if err := s.conn.WithContext(ctx).Create(n); err != nil {
		return nil, errors.Wrap(err, "creating network")
	}
	return n, nil
}

func (s *Store) NetworkGet(ctx context.Context, id uuid.UUID) (*model.Network, error) {
	n := &model.Network{}
	if err := s.conn.WithContext(ctx).Find(n, id); err != nil {
		if isNotFound(err) {
			return nil, errs.New(errs.KindInvalidArgument, "network %s not found", id)
		}
		return nil, errors.Wrap(err, "fetching network")
	}
	return n, nil
}

func (s *Store) NetworkGetAll(ctx context.Context) ([]*model.Network, error) {
	var out []*model.Network
	if err := s.conn.WithContext(ctx).All(&out); err != nil {
		return nil, errors.Wrap(err, "listing networks")
	}
	return out, nil
}

func (s *Store) NetworkGetAllByHost(ctx context.Context, host string) ([]*model.Network, error) {
	var out []*model.Network
	if err := s.conn.WithContext(ctx).Where("host = ?", host).All(&out); err != nil {
		return nil, errors.Wrap(err, "listing networks by host")
	}
	return out, nil
}

func (s *Store) NetworkGetAllByInstance(ctx context.Context, instanceID uuid.UUID) ([]*model.Network, error) {
	var out []*model.Network
	q := `SELECT n.* FROM networks n
	      JOIN virtual_interfaces v ON v.network_id = n.id
	      WHERE v.instance_id = ?`
	if err := s.conn.WithContext(ctx).RawQuery(q, instanceID).All(&out); err != nil {
		return nil, errors.Wrap(err, "listing networks by instance")
	}
	return out, nil
}

func (s *Store) NetworkSetHost(ctx context.Context, id uuid.UUID, host string) (bool, error) {
	res, err := s.conn.WithContext(ctx).Store.Exec(
		s.conn.Rebind("UPDATE networks SET host = ?, updated_at = now() WHERE id = ? AND host IS NULL"),
		host, id,
	)
	if err != nil {
		return false, errors.Wrap(err, "claiming network host")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "reading claim result")
	}
	return n == 1, nil
}

func (s *Store) NetworkUpdate(ctx context.Context, id uuid.UUID, f store.NetworkFields) error {
	n, err := s.NetworkGet(ctx, id)
	if err != nil {
		return err
	}
	n.VPNPublicAddress = f.VPNPublicAddress
	n.VPNPublicPort = f.VPNPublicPort
	n.Injected = f.Injected
	n.DNS = f.DNS
	if err := s.conn.WithContext(ctx).Update(n); err != nil {
		return errors.Wrap(err, "updating network")
	}
	return nil
}

func (s *Store) NetworkGetHostIP(ctx context.Context, host string) (string, error) {
	var ip string
	q := `SELECT address FROM fixed_ips f
	      JOIN networks n ON n.id = f.network_id
	      WHERE n.host = ? AND f.instance_id IS NULL AND f.reserved = true
	      ORDER BY f.address::inet LIMIT 1`
	if err := s.conn.WithContext(ctx).RawQuery(q, host).First(&ip); err != nil {
		return "", errors.Wrapf(err, "resolving host ip for %s", host)
	}
	return ip, nil
}

func (s *Store) FixedIPCreate(ctx context.Context, networkID uuid.UUID, address string, reserved bool) (*model.FixedIP, error) {
	fip := &model.FixedIP{
		Address:   address,
		NetworkID: networkID,
		Reserved:  reserved,
	}
	if err := s.conn.WithContext(ctx).Create(fip); err != nil {
		return nil, errors.Wrap(err, "creating fixed ip")
	}
	return fip, nil
}

// FixedIPAssociatePool claims the lowest free address of networkID inside a
// SELECT ... FOR UPDATE SKIP LOCKED transaction, so concurrent allocations
// on different hosts never block each other and never double-assign.
func (s *Store) FixedIPAssociatePool(ctx context.Context, networkID, instanceID uuid.UUID) (string, error) {
	var address string
	err := s.conn.WithContext(ctx).Transaction(func(tx *pop.Connection) error {
		fip := &model.FixedIP{}
		q := `SELECT * FROM fixed_ips
		      WHERE network_id = ? AND reserved = false AND instance_id IS NULL
		      ORDER BY address::inet
		      FOR UPDATE SKIP LOCKED
		      LIMIT 1`
		if err := tx.RawQuery(q, networkID).First(fip); err != nil {
			if isNotFound(err) {
				return errs.New(errs.KindPoolExhausted, "fixed ip pool exhausted for network %s", networkID)
			}
			return errors.Wrap(err, "claiming fixed ip")
		}
		fip.InstanceID = &instanceID
		if err := tx.Update(fip); err != nil {
			return errors.Wrap(err, "binding fixed ip to instance")
		}
		address = fip.Address
		return nil
	})
	if err != nil {
		return "", err
	}
	return address, nil
}

func (s *Store) FixedIPAssociate(ctx context.Context, address string, instanceID uuid.UUID) error {
	fip, err := s.FixedIPGetByAddress(ctx, address)
	if err != nil {
		return err
	}
	fip.InstanceID = &instanceID
	if err := s.conn.WithContext(ctx).Update(fip); err != nil {
		return errors.Wrap(err, "associating fixed ip")
	}
	return nil
}

func (s *Store) FixedIPDisassociate(ctx context.Context, address string) (*model.Network, error) {
	fip, err := s.FixedIPGetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	fip.InstanceID = nil
	fip.VirtualInterfaceID = nil
	fip.Allocated = false
	if err := s.conn.WithContext(ctx).Update(fip); err != nil {
		return nil, errors.Wrap(err, "disassociating fixed ip")
	}
	return s.NetworkGet(ctx, fip.NetworkID)
}

func (s *Store) FixedIPDisassociateAllByTimeout(ctx context.Context, host string, cutoff time.Time) (int, error) {
	q := `UPDATE fixed_ips SET instance_id = NULL, virtual_interface_id = NULL, updated_at = now()
	      WHERE instance_id IS NOT NULL AND allocated = false AND leased = false AND updated_at < ?
	      AND network_id IN (SELECT id FROM networks WHERE host = ?)`
	res, err := s.conn.WithContext(ctx).Store.Exec(s.conn.Rebind(q), cutoff, host)
	if err != nil {
		return 0, errors.Wrap(err, "sweeping stale fixed ips")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading sweep result")
	}
	return int(n), nil
}

func (s *Store) FixedIPUpdate(ctx context.Context, address string, allocated, leased *bool, virtualInterfaceID **uuid.UUID) error {
	fip, err := s.FixedIPGetByAddress(ctx, address)
	if err != nil {
		return err
	}
	if allocated != nil {
		fip.Allocated = *allocated
	}
	if leased != nil {
		fip.Leased = *leased
	}
	if virtualInterfaceID != nil {
		fip.VirtualInterfaceID = *virtualInterfaceID
	}
	if err := s.conn.WithContext(ctx).Update(fip); err != nil {
		return errors.Wrap(err, "updating fixed ip")
	}
	return nil
}

func (s *Store) FixedIPGetByAddress(ctx context.Context, address string) (*model.FixedIP, error) {
	fip := &model.FixedIP{}
	if err := s.conn.WithContext(ctx).Where("address = ?", address).First(fip); err != nil {
		if isNotFound(err) {
			return nil, errs.New(errs.KindInvalidArgument, "fixed ip %s not found", address)
		}
		return nil, errors.Wrap(err, "fetching fixed ip")
	}
	return fip, nil
}

func (s *Store) FixedIPGetByID(ctx context.Context, id uuid.UUID) (*model.FixedIP, error) {
	fip := &model.FixedIP{}
	if err := s.conn.WithContext(ctx).Find(fip, id); err != nil {
		if isNotFound(err) {
			return nil, errs.New(errs.KindInvalidArgument, "fixed ip %s not found", id)
		}
		return nil, errors.Wrap(err, "fetching fixed ip by id")
	}
	return fip, nil
}

func (s *Store) FixedIPGetByInstance(ctx context.Context, instanceID uuid.UUID) ([]*model.FixedIP, error) {
	var out []*model.FixedIP
	if err := s.conn.WithContext(ctx).Where("instance_id = ?", instanceID).All(&out); err != nil {
		return nil, errors.Wrap(err, "listing fixed ips by instance")
	}
	return out, nil
}

func (s *Store) FixedIPGetAllByNetwork(ctx context.Context, networkID uuid.UUID) ([]*model.FixedIP, error) {
	var out []*model.FixedIP
	if err := s.conn.WithContext(ctx).Where("network_id = ?", networkID).Order("address asc").All(&out); err != nil {
		return nil, errors.Wrap(err, "listing fixed ips by network")
	}
	return out, nil
}

func (s *Store) FixedIPGetNetwork(ctx context.Context, address string) (*model.Network, error) {
	fip, err := s.FixedIPGetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	return s.NetworkGet(ctx, fip.NetworkID)
}

func (s *Store) VirtualInterfaceCreate(ctx context.Context, instanceID, networkID uuid.UUID, mac string) (*model.VirtualInterface, error) {
	vif := &model.VirtualInterface{
		MACAddress: mac,
		InstanceID: instanceID,
		NetworkID:  networkID,
	}
	if err := s.conn.WithContext(ctx).Create(vif); err != nil {
		if isUniqueViolation(err) {
			return nil, errs.New(errs.KindConflict, "mac address %s already allocated", mac)
		}
		return nil, errors.Wrap(err, "creating virtual interface")
	}
	return vif, nil
}

func (s *Store) VirtualInterfaceGetByInstance(ctx context.Context, instanceID uuid.UUID) ([]*model.VirtualInterface, error) {
	var out []*model.VirtualInterface
	if err := s.conn.WithContext(ctx).Where("instance_id = ?", instanceID).All(&out); err != nil {
		return nil, errors.Wrap(err, "listing virtual interfaces by instance")
	}
	return out, nil
}

func (s *Store) VirtualInterfaceGetByInstanceAndNetwork(ctx context.Context, instanceID, networkID uuid.UUID) (*model.VirtualInterface, error) {
	vif := &model.VirtualInterface{}
	err := s.conn.WithContext(ctx).
		Where("instance_id = ? AND network_id = ?", instanceID, networkID).
		First(vif)
	if err != nil {
		if isNotFound(err) {
			return nil, errs.New(errs.KindInvalidArgument, "no vif for instance %s on network %s", instanceID, networkID)
		}
		return nil, errors.Wrap(err, "fetching virtual interface")
	}
	return vif, nil
}

func (s *Store) VirtualInterfaceDeleteByInstance(ctx context.Context, instanceID uuid.UUID) error {
	q := `DELETE FROM virtual_interfaces WHERE instance_id = ?`
	if err := s.conn.WithContext(ctx).Store.Exec(s.conn.Rebind(q), instanceID); err != nil {
		return errors.Wrap(err, "deleting virtual interfaces")
	}
	return nil
}

func (s *Store) FloatingIPAllocateAddress(ctx context.Context, projectID string) (string, error) {
	var address string
	err := s.conn.WithContext(ctx).Transaction(func(tx *pop.Connection) error {
		f := &model.FloatingIP{}
		q := `SELECT * FROM floating_ips WHERE project_id IS NULL ORDER BY address::inet FOR UPDATE SKIP LOCKED LIMIT 1`
		if err := tx.RawQuery(q).First(f); err != nil {
			if isNotFound(err) {
				return errs.New(errs.KindPoolExhausted, "no free floating ip available")
			}
			return errors.Wrap(err, "claiming floating ip")
		}
		f.ProjectID = &projectID
		if err := tx.Update(f); err != nil {
			return errors.Wrap(err, "allocating floating ip")
		}
		address = f.Address
		return nil
	})
	if err != nil {
		return "", err
	}
	return address, nil
}

func (s *Store) FloatingIPDeallocate(ctx context.Context, address string) error {
	f, err := s.FloatingIPGetByAddress(ctx, address)
	if err != nil {
		return err
	}
	if f.IsAssociated() {
		return errs.New(errs.KindConflict, "floating ip %s is still associated", address)
	}
	f.ProjectID = nil
	f.AutoAssigned = false
	if err := s.conn.WithContext(ctx).Update(f); err != nil {
		return errors.Wrap(err, "deallocating floating ip")
	}
	return nil
}

func (s *Store) FloatingIPFixedIPAssociate(ctx context.Context, floatingAddr, fixedAddr string) error {
	f, err := s.FloatingIPGetByAddress(ctx, floatingAddr)
	if err != nil {
		return err
	}
	if f.IsAssociated() {
		return errs.New(errs.KindConflict, "floating ip %s is already associated", floatingAddr)
	}
	fip, err := s.FixedIPGetByAddress(ctx, fixedAddr)
	if err != nil {
		return err
	}
	network, err := s.NetworkGet(ctx, fip.NetworkID)
	if err != nil {
		return err
	}

	f.FixedIPID = &fip.ID
	// A FloatingIP's owning host is derived from its fixed IP's network
	// at association time, not tracked as an independent field: the
	// Store contract has no floating_ip_set_host operation, and
	// Store.FloatingIPGetAllByHost needs this to find what a host's
	// startup reconciliation must re-bind.
	f.Host = network.Host
	if err := s.conn.WithContext(ctx).Update(f); err != nil {
		return errors.Wrap(err, "associating floating ip")
	}
	return nil
}

func (s *Store) FloatingIPDisassociate(ctx context.Context, floatingAddr string) (string, error) {
	f, err := s.FloatingIPGetByAddress(ctx, floatingAddr)
	if err != nil {
		return "", err
	}
	if !f.IsAssociated() {
		return "", nil
	}
	fip := &model.FixedIP{}
	if err := s.conn.WithContext(ctx).Find(fip, *f.FixedIPID); err != nil {
		return "", errors.Wrap(err, "resolving associated fixed ip")
	}
	f.FixedIPID = nil
	if err := s.conn.WithContext(ctx).Update(f); err != nil {
		return "", errors.Wrap(err, "disassociating floating ip")
	}
	return fip.Address, nil
}

func (s *Store) FloatingIPGetByAddress(ctx context.Context, address string) (*model.FloatingIP, error) {
	f := &model.FloatingIP{}
	if err := s.conn.WithContext(ctx).Where("address = ?", address).First(f); err != nil {
		if isNotFound(err) {
			return nil, errs.New(errs.KindInvalidArgument, "floating ip %s not found", address)
		}
		return nil, errors.Wrap(err, "fetching floating ip")
	}
	return f, nil
}

func (s *Store) FloatingIPGetAllByHost(ctx context.Context, host string) ([]*model.FloatingIP, error) {
	var out []*model.FloatingIP
	if err := s.conn.WithContext(ctx).Where("host = ?", host).All(&out); err != nil {
		return nil, errors.Wrap(err, "listing floating ips by host")
	}
	return out, nil
}

func (s *Store) FloatingIPSetAutoAssigned(ctx context.Context, address string) error {
	f, err := s.FloatingIPGetByAddress(ctx, address)
	if err != nil {
		return err
	}
	f.AutoAssigned = true
	if err := s.conn.WithContext(ctx).Update(f); err != nil {
		return errors.Wrap(err, "marking floating ip auto-assigned")
	}
	return nil
}

func (s *Store) InstanceTypeGetByID(ctx context.Context, id uuid.UUID) (*model.InstanceType, error) {
	it := &model.InstanceType{}
	if err := s.conn.WithContext(ctx).Find(it, id); err != nil {
		if isNotFound(err) {
			return nil, errs.New(errs.KindInvalidArgument, "instance type %s not found", id)
		}
		return nil, errors.Wrap(err, "fetching instance type")
	}
	return it, nil
}

func (s *Store) QueueGetFor(ctx context.Context, topic, host string) (string, error) {
	return topic + "." + host, nil
}
