package model

import (
	"time"

	"github.com/gobuffalo/pop/v6"
	"github.com/gobuffalo/validate/v3"
	"github.com/gobuffalo/validate/v3/validators"
	"github.com/gofrs/uuid"
)

// FixedIP is one address of a Network's CIDR. Every address in the CIDR
// has a row, materialized at network-creation time: reserved slots (the
// network address, gateway, broadcast and, for VLAN networks, the vpn
// endpoint and client slots) are created with Reserved=true so the
// allocation pool never returns them.
type FixedIP struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Address   string    `json:"address" db:"address"`
	NetworkID uuid.UUID `json:"network_id" db:"network_id"`

	InstanceID         *uuid.UUID `json:"instance_id" db:"instance_id"`
	VirtualInterfaceID *uuid.UUID `json:"virtual_interface_id" db:"virtual_interface_id"`

	Allocated bool `json:"allocated" db:"allocated"`
	Leased    bool `json:"leased" db:"leased"`
	Reserved  bool `json:"reserved" db:"reserved"`
}

func (FixedIP) TableName() string {
	return "fixed_ips"
}

func (f *FixedIP) Validate(tx *pop.Connection) (*validate.Errors, error) {
	return validate.Validate(
		&validators.StringIsPresent{Field: f.Address, Name: "Address"},
	), nil
}

// IsFree reports whether the address is available for pool claim.
func (f *FixedIP) IsFree() bool {
	return !f.Reserved && f.InstanceID == nil
}

// IsStale reports whether the address is eligible for sweeper reclamation:
// deallocated, not leased, and idle since before cutoff.
func (f *FixedIP) IsStale(cutoff time.Time) bool {
	return !f.Allocated && !f.Leased && f.InstanceID != nil && f.UpdatedAt.Before(cutoff)
}
