// Package store defines the narrow contract the allocation engine issues
// against persisted entities. The core never
// holds a long-lived in-memory mirror of Network/FixedIP/VIF/FloatingIP
// state — every read and mutation goes through a Store implementation,
// which is free to enforce atomicity however its backend allows.
//
// Two implementations are provided: sqlstore, backed by gobuffalo/pop for
// production, and memstore, an in-process fake for unit tests that still
// honors the atomic-claim contracts below.
package store

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"nethost.io/nethost/internal/model"
)

// NetworkFields is the set of operator-supplied fields used to create or
// update a Network row.
type NetworkFields struct {
	Label             string
	CIDR              string
	CIDRv6            *string
	Netmask           string
	NetmaskV6         *string
	Gateway           string
	GatewayV6         *string
	Broadcast         string
	DHCPStart         string
	Bridge            string
	BridgeInterface   string
	VLAN              *int
	VPNPublicAddress  *string
	VPNPublicPort     *int
	VPNPrivateAddress *string
	DNS               string
	Injected          bool
	MultiHost         bool
}

// Store is the persistence contract the allocation engine depends on.
// Method names mirror the spec's external-interface vocabulary so the
// mapping from spec to code stays obvious.
type Store interface {
	// NetworkCreateSafe inserts fields as a new Network, returning nil
	// (not an error) when the CIDR already exists — callers distinguish
	// "already present" from a hard failure by checking for a nil result.
	NetworkCreateSafe(ctx context.Context, fields NetworkFields) (*model.Network, error)
	NetworkGet(ctx context.Context, id uuid.UUID) (*model.Network, error)
	NetworkGetAll(ctx context.Context) ([]*model.Network, error)
	NetworkGetAllByHost(ctx context.Context, host string) ([]*model.Network, error)
	NetworkGetAllByInstance(ctx context.Context, instanceID uuid.UUID) ([]*model.Network, error)
	// NetworkSetHost performs a first-writer-wins claim: it succeeds only
	// if the network's host column is currently unset.
	NetworkSetHost(ctx context.Context, id uuid.UUID, host string) (bool, error)
	NetworkUpdate(ctx context.Context, id uuid.UUID, fields NetworkFields) error
	NetworkGetHostIP(ctx context.Context, host string) (string, error)

	FixedIPCreate(ctx context.Context, networkID uuid.UUID, address string, reserved bool) (*model.FixedIP, error)
	// FixedIPAssociatePool atomically claims one free, non-reserved
	// address of network and binds it to instanceID. This and
	// NetworkSetHost are the two operations that must be genuinely
	// atomic.
	FixedIPAssociatePool(ctx context.Context, networkID, instanceID uuid.UUID) (string, error)
	FixedIPAssociate(ctx context.Context, address string, instanceID uuid.UUID) error
	// FixedIPDisassociate clears the instance association and returns
	// the owning network.
	FixedIPDisassociate(ctx context.Context, address string) (*model.Network, error)
	FixedIPDisassociateAllByTimeout(ctx context.Context, host string, cutoff time.Time) (int, error)
	// FixedIPUpdate applies a partial update: allocated/leased are left
	// untouched when nil. virtualInterfaceID distinguishes "don't touch"
	// (outer pointer nil) from "clear to null" (outer pointer non-nil,
	// pointing at a nil *uuid.UUID) from "set" (outer pointer non-nil,
	// pointing at a non-nil id) — a single *uuid.UUID can't express
	// clearing, since nil is already its "don't touch" sentinel.
	FixedIPUpdate(ctx context.Context, address string, allocated, leased *bool, virtualInterfaceID **uuid.UUID) error
	FixedIPGetByAddress(ctx context.Context, address string) (*model.FixedIP, error)
	// FixedIPGetByID resolves a FixedIP row by its primary key, used by
	// the floating-IP subsystem to translate FloatingIP.FixedIPID back
	// into an address.
	FixedIPGetByID(ctx context.Context, id uuid.UUID) (*model.FixedIP, error)
	FixedIPGetByInstance(ctx context.Context, instanceID uuid.UUID) ([]*model.FixedIP, error)
	FixedIPGetNetwork(ctx context.Context, address string) (*model.Network, error)
	// FixedIPGetAllByNetwork lists every FixedIP row (allocated or free) of
	// a network, used by the read-only introspection surface to report
	// pool utilization without walking instances.
	FixedIPGetAllByNetwork(ctx context.Context, networkID uuid.UUID) ([]*model.FixedIP, error)

	// VirtualInterfaceCreate fails with errs.KindConflict on a MAC
	// collision so callers can retry with a freshly generated address.
	VirtualInterfaceCreate(ctx context.Context, instanceID, networkID uuid.UUID, mac string) (*model.VirtualInterface, error)
	VirtualInterfaceGetByInstance(ctx context.Context, instanceID uuid.UUID) ([]*model.VirtualInterface, error)
	VirtualInterfaceGetByInstanceAndNetwork(ctx context.Context, instanceID, networkID uuid.UUID) (*model.VirtualInterface, error)
	VirtualInterfaceDeleteByInstance(ctx context.Context, instanceID uuid.UUID) error

	FloatingIPAllocateAddress(ctx context.Context, projectID string) (string, error)
	FloatingIPDeallocate(ctx context.Context, address string) error
	FloatingIPFixedIPAssociate(ctx context.Context, floatingAddr, fixedAddr string) error
	FloatingIPDisassociate(ctx context.Context, floatingAddr string) (string, error)
	FloatingIPGetByAddress(ctx context.Context, address string) (*model.FloatingIP, error)
	FloatingIPGetAllByHost(ctx context.Context, host string) ([]*model.FloatingIP, error)
	FloatingIPSetAutoAssigned(ctx context.Context, address string) error

	InstanceTypeGetByID(ctx context.Context, id uuid.UUID) (*model.InstanceType, error)
	// QueueGetFor resolves the Bus topic/queue name an RPC to host should
	// be dispatched on.
	QueueGetFor(ctx context.Context, topic, host string) (string, error)
}
