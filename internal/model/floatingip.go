package model

import (
	"time"

	"github.com/gobuffalo/pop/v6"
	"github.com/gobuffalo/validate/v3"
	"github.com/gobuffalo/validate/v3/validators"
	"github.com/gofrs/uuid"
)

// FloatingIP is a publicly-routable address that can be bound on demand to
// a FixedIP. It is owned by a project when allocated from the pool, and by
// the deployment pool otherwise.
type FloatingIP struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Address   string  `json:"address" db:"address"`
	ProjectID *string `json:"project_id" db:"project_id"`

	FixedIPID    *uuid.UUID `json:"fixed_ip_id" db:"fixed_ip_id"`
	AutoAssigned bool       `json:"auto_assigned" db:"auto_assigned"`

	// Host records which network-host most recently bound this address,
	// so startup reconciliation only re-applies bindings it owns.
	Host *string `json:"host" db:"host"`
}

func (FloatingIP) TableName() string {
	return "floating_ips"
}

func (f *FloatingIP) Validate(tx *pop.Connection) (*validate.Errors, error) {
	return validate.Validate(
		&validators.StringIsPresent{Field: f.Address, Name: "Address"},
	), nil
}

// IsAssociated reports whether the floating IP is currently bound to a
// fixed IP.
func (f *FloatingIP) IsAssociated() bool {
	return f.FixedIPID != nil
}

// IsAllocated reports whether the floating IP has been taken from the free
// pool by a project.
func (f *FloatingIP) IsAllocated() bool {
	return f.ProjectID != nil && *f.ProjectID != ""
}
