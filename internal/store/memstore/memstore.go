// Package memstore is an in-process Store used by engine and policy unit
// tests. It honors the same atomicity contracts sqlstore provides
// (FixedIPAssociatePool, NetworkSetHost) using a mutex instead of a
// database transaction.
//
// Pool claims are backed by internal/ipaddr's AllocationBitmap: every
// non-reserved address of a network gets an offset in ascending creation
// order, and AllocateNext always returns the lowest free offset, giving a
// deterministic pool-order.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"nethost.io/nethost/internal/engine/errs"
	"nethost.io/nethost/internal/ipaddr"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/store"
)

type pool struct {
	addresses []string
	offsetOf  map[string]int
	bitmap    *ipaddr.AllocationBitmap
}

// Store is an in-memory store.Store implementation.
type Store struct {
	mu sync.Mutex

	networks    map[uuid.UUID]*model.Network
	cidrIndex   map[string]uuid.UUID
	fixedIPs    map[string]*model.FixedIP
	pools       map[uuid.UUID]*pool
	vifs        map[uuid.UUID]*model.VirtualInterface
	vifByPair   map[[2]uuid.UUID]uuid.UUID
	macIndex    map[string]uuid.UUID
	floatingIPs map[string]*model.FloatingIP
	instTypes   map[uuid.UUID]*model.InstanceType
	hostIPs     map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		networks:    map[uuid.UUID]*model.Network{},
		cidrIndex:   map[string]uuid.UUID{},
		fixedIPs:    map[string]*model.FixedIP{},
		pools:       map[uuid.UUID]*pool{},
		vifs:        map[uuid.UUID]*model.VirtualInterface{},
		vifByPair:   map[[2]uuid.UUID]uuid.UUID{},
		macIndex:    map[string]uuid.UUID{},
		floatingIPs: map[string]*model.FloatingIP{},
		instTypes:   map[uuid.UUID]*model.InstanceType{},
		hostIPs:     map[string]string{},
	}
}

var _ store.Store = (*Store)(nil)

// SeedInstanceType registers an instance type for InstanceTypeGetByID to
// resolve; there is no create-instance-type operation in the Store
// contract since instance types belong to the compute subsystem.
func (s *Store) SeedInstanceType(it *model.InstanceType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instTypes[it.ID] = it
}

// SeedHostIP registers the management IP a host reports for NetworkGetHostIP.
func (s *Store) SeedHostIP(host, ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostIPs[host] = ip
}

func (s *Store) NetworkCreateSafe(ctx context.Context, f store.NetworkFields) (*model.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cidrIndex[f.CIDR]; exists {
		return nil, nil
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	n := &model.Network{
		ID:                id,
		Label:             f.Label,
		CreatedAt:         now,
		UpdatedAt:         now,
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
	s.networks[id] = n
	s.cidrIndex[f.CIDR] = id
	return n, nil
}

func (s *Store) NetworkGet(ctx context.Context, id uuid.UUID) (*model.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.networks[id]
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "network %s not found", id)
	}
	return n, nil
}

func (s *Store) NetworkGetAll(ctx context.Context) ([]*model.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Network, 0, len(s.networks))
	for _, n := range s.networks {
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) NetworkGetAllByHost(ctx context.Context, host string) ([]*model.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Network
	for _, n := range s.networks {
		if n.Host != nil && *n.Host == host {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) NetworkGetAllByInstance(ctx context.Context, instanceID uuid.UUID) ([]*model.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []*model.Network
	for _, v := range s.vifs {
		if v.InstanceID == instanceID && !seen[v.NetworkID] {
			seen[v.NetworkID] = true
			if n, ok := s.networks[v.NetworkID]; ok {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

// NetworkSetHost is the first-writer-wins claim: it succeeds only if Host
// is currently unset.
func (s *Store) NetworkSetHost(ctx context.Context, id uuid.UUID, host string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.networks[id]
	if !ok {
		return false, errs.New(errs.KindInvalidArgument, "network %s not found", id)
	}
	if n.IsClaimed() {
		return false, nil
	}
	n.Host = &host
	n.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) NetworkUpdate(ctx context.Context, id uuid.UUID, f store.NetworkFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.networks[id]
	if !ok {
		return errs.New(errs.KindInvalidArgument, "network %s not found", id)
	}
	if f.VPNPublicAddress != nil {
		n.VPNPublicAddress = f.VPNPublicAddress
	}
	if f.VPNPublicPort != nil {
		n.VPNPublicPort = f.VPNPublicPort
	}
	n.Injected = f.Injected
	n.DNS = f.DNS
	n.UpdatedAt = time.Now()
	return nil
}

func (s *Store) NetworkGetHostIP(ctx context.Context, host string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ip, ok := s.hostIPs[host]
	if !ok {
		return "", errs.New(errs.KindInvalidArgument, "no ip registered for host %s", host)
	}
	return ip, nil
}

func (s *Store) FixedIPCreate(ctx context.Context, networkID uuid.UUID, address string, reserved bool) (*model.FixedIP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.fixedIPs[address]; exists {
		return nil, errs.New(errs.KindConflict, "fixed ip %s already exists", address)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	fip := &model.FixedIP{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Address:   address,
		NetworkID: networkID,
		Reserved:  reserved,
	}
	s.fixedIPs[address] = fip

	if !reserved {
		p := s.pools[networkID]
		if p == nil {
			p = &pool{offsetOf: map[string]int{}}
			s.pools[networkID] = p
		}
		offset := len(p.addresses)
		p.addresses = append(p.addresses, address)
		p.offsetOf[address] = offset
		p.bitmap = ipaddr.NewAllocationBitmap(len(p.addresses))
	}
	return fip, nil
}

func (s *Store) FixedIPAssociatePool(ctx context.Context, networkID, instanceID uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pools[networkID]
	if p == nil {
		return "", errs.New(errs.KindPoolExhausted, "no fixed ip pool for network %s", networkID)
	}
	offset, ok := p.bitmap.AllocateNext()
	if !ok {
		return "", errs.New(errs.KindPoolExhausted, "fixed ip pool exhausted for network %s", networkID)
	}
	address := p.addresses[offset]
	fip := s.fixedIPs[address]
	fip.InstanceID = &instanceID
	fip.UpdatedAt = time.Now()
	return address, nil
}

func (s *Store) FixedIPAssociate(ctx context.Context, address string, instanceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fip, ok := s.fixedIPs[address]
	if !ok {
		return errs.New(errs.KindInvalidArgument, "fixed ip %s not found", address)
	}
	fip.InstanceID = &instanceID
	fip.UpdatedAt = time.Now()

	if p := s.pools[fip.NetworkID]; p != nil {
		if offset, ok := p.offsetOf[address]; ok {
			p.bitmap.Allocate(offset)
		}
	}
	return nil
}

func (s *Store) FixedIPDisassociate(ctx context.Context, address string) (*model.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fip, ok := s.fixedIPs[address]
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "fixed ip %s not found", address)
	}

	fip.InstanceID = nil
	fip.VirtualInterfaceID = nil
	fip.Allocated = false
	fip.UpdatedAt = time.Now()

	if p := s.pools[fip.NetworkID]; p != nil {
		if offset, ok := p.offsetOf[address]; ok {
			p.bitmap.Release(offset)
		}
	}

	n, ok := s.networks[fip.NetworkID]
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "network %s not found", fip.NetworkID)
	}
	return n, nil
}

func (s *Store) FixedIPDisassociateAllByTimeout(ctx context.Context, host string, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, fip := range s.fixedIPs {
		n, ok := s.networks[fip.NetworkID]
		if !ok || n.Host == nil || *n.Host != host {
			continue
		}
		if fip.IsStale(cutoff) {
			fip.InstanceID = nil
			fip.VirtualInterfaceID = nil
			fip.UpdatedAt = time.Now()
			if p := s.pools[fip.NetworkID]; p != nil {
				if offset, ok := p.offsetOf[fip.Address]; ok {
					p.bitmap.Release(offset)
				}
			}
			count++
		}
	}
	return count, nil
}

func (s *Store) FixedIPUpdate(ctx context.Context, address string, allocated, leased *bool, virtualInterfaceID **uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fip, ok := s.fixedIPs[address]
	if !ok {
		return errs.New(errs.KindInvalidArgument, "fixed ip %s not found", address)
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
	fip.UpdatedAt = time.Now()
	return nil
}

func (s *Store) FixedIPGetByAddress(ctx context.Context, address string) (*model.FixedIP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fip, ok := s.fixedIPs[address]
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "fixed ip %s not found", address)
	}
	return fip, nil
}

func (s *Store) FixedIPGetByID(ctx context.Context, id uuid.UUID) (*model.FixedIP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fip := range s.fixedIPs {
		if fip.ID == id {
			return fip, nil
		}
	}
	return nil, errs.New(errs.KindInvalidArgument, "fixed ip %s not found", id)
}

func (s *Store) FixedIPGetByInstance(ctx context.Context, instanceID uuid.UUID) ([]*model.FixedIP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.FixedIP
	for _, fip := range s.fixedIPs {
		if fip.InstanceID != nil && *fip.InstanceID == instanceID {
			out = append(out, fip)
		}
	}
	return out, nil
}

func (s *Store) FixedIPGetAllByNetwork(ctx context.Context, networkID uuid.UUID) ([]*model.FixedIP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.FixedIP
	for _, fip := range s.fixedIPs {
		if fip.NetworkID == networkID {
			out = append(out, fip)
		}
	}
	return out, nil
}

func (s *Store) FixedIPGetNetwork(ctx context.Context, address string) (*model.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fip, ok := s.fixedIPs[address]
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "fixed ip %s not found", address)
	}
	n, ok := s.networks[fip.NetworkID]
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "network %s not found", fip.NetworkID)
	}
	return n, nil
}

func (s *Store) VirtualInterfaceCreate(ctx context.Context, instanceID, networkID uuid.UUID, mac string) (*model.VirtualInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.macIndex[mac]; exists {
		return nil, errs.New(errs.KindConflict, "mac address %s already allocated", mac)
	}
	pairKey := [2]uuid.UUID{instanceID, networkID}
	if _, exists := s.vifByPair[pairKey]; exists {
		return nil, errs.New(errs.KindConflict, "instance %s already has a vif on network %s", instanceID, networkID)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	vif := &model.VirtualInterface{
		ID:         id,
		CreatedAt:  time.Now(),
		MACAddress: mac,
		InstanceID: instanceID,
		NetworkID:  networkID,
	}
	s.vifs[id] = vif
	s.macIndex[mac] = id
	s.vifByPair[pairKey] = id
	return vif, nil
}

func (s *Store) VirtualInterfaceGetByInstance(ctx context.Context, instanceID uuid.UUID) ([]*model.VirtualInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.VirtualInterface
	for _, v := range s.vifs {
		if v.InstanceID == instanceID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) VirtualInterfaceGetByInstanceAndNetwork(ctx context.Context, instanceID, networkID uuid.UUID) (*model.VirtualInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.vifByPair[[2]uuid.UUID{instanceID, networkID}]
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "no vif for instance %s on network %s", instanceID, networkID)
	}
	return s.vifs[id], nil
}

func (s *Store) VirtualInterfaceDeleteByInstance(ctx context.Context, instanceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.vifs {
		if v.InstanceID == instanceID {
			delete(s.vifs, id)
			delete(s.macIndex, v.MACAddress)
			delete(s.vifByPair, [2]uuid.UUID{v.InstanceID, v.NetworkID})
		}
	}
	return nil
}

func (s *Store) FloatingIPAllocateAddress(ctx context.Context, projectID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.floatingIPs {
		if !f.IsAllocated() {
			f.ProjectID = &projectID
			f.UpdatedAt = time.Now()
			return f.Address, nil
		}
	}
	return "", errs.New(errs.KindPoolExhausted, "no free floating ip available")
}

func (s *Store) FloatingIPDeallocate(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.floatingIPs[address]
	if !ok {
		return errs.New(errs.KindInvalidArgument, "floating ip %s not found", address)
	}
	if f.IsAssociated() {
		return errs.New(errs.KindConflict, "floating ip %s is still associated", address)
	}
	f.ProjectID = nil
	f.AutoAssigned = false
	f.UpdatedAt = time.Now()
	return nil
}

func (s *Store) FloatingIPFixedIPAssociate(ctx context.Context, floatingAddr, fixedAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.floatingIPs[floatingAddr]
	if !ok {
		return errs.New(errs.KindInvalidArgument, "floating ip %s not found", floatingAddr)
	}
	if f.IsAssociated() {
		return errs.New(errs.KindConflict, "floating ip %s is already associated", floatingAddr)
	}
	fip, ok := s.fixedIPs[fixedAddr]
	if !ok {
		return errs.New(errs.KindInvalidArgument, "fixed ip %s not found", fixedAddr)
	}
	f.FixedIPID = &fip.ID
	// Derived from the fixed IP's network, the same as sqlstore: there
	// is no separate floating_ip_set_host primitive in the Store
	// contract, so association is what records which host owns the
	// binding for later reconciliation.
	if network, ok := s.networks[fip.NetworkID]; ok {
		f.Host = network.Host
	}
	f.UpdatedAt = time.Now()
	return nil
}

func (s *Store) FloatingIPDisassociate(ctx context.Context, floatingAddr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.floatingIPs[floatingAddr]
	if !ok {
		return "", errs.New(errs.KindInvalidArgument, "floating ip %s not found", floatingAddr)
	}
	if !f.IsAssociated() {
		return "", nil
	}
	var fixedAddr string
	for addr, fip := range s.fixedIPs {
		if fip.ID == *f.FixedIPID {
			fixedAddr = addr
			break
		}
	}
	f.FixedIPID = nil
	f.UpdatedAt = time.Now()
	return fixedAddr, nil
}

func (s *Store) FloatingIPGetByAddress(ctx context.Context, address string) (*model.FloatingIP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.floatingIPs[address]
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "floating ip %s not found", address)
	}
	return f, nil
}

func (s *Store) FloatingIPGetAllByHost(ctx context.Context, host string) ([]*model.FloatingIP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.FloatingIP
	for _, f := range s.floatingIPs {
		if f.Host != nil && *f.Host == host {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) FloatingIPSetAutoAssigned(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.floatingIPs[address]
	if !ok {
		return errs.New(errs.KindInvalidArgument, "floating ip %s not found", address)
	}
	f.AutoAssigned = true
	return nil
}

func (s *Store) InstanceTypeGetByID(ctx context.Context, id uuid.UUID) (*model.InstanceType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.instTypes[id]
	if !ok {
		return nil, errs.New(errs.KindInvalidArgument, "instance type %s not found", id)
	}
	return it, nil
}

func (s *Store) QueueGetFor(ctx context.Context, topic, host string) (string, error) {
	return topic + "." + host, nil
}

// SeedFloatingIP registers a free FloatingIP in the pool; used by tests to
// prime a deployment's floating-ip range.
func (s *Store) SeedFloatingIP(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := uuid.NewV4()
	s.floatingIPs[address] = &model.FloatingIP{ID: id, Address: address, CreatedAt: time.Now(), UpdatedAt: time.Now()}
}
