package model

import (
	"regexp"
	"time"

	"github.com/gobuffalo/pop/v6"
	"github.com/gobuffalo/validate/v3"
	"github.com/gobuffalo/validate/v3/validators"
	"github.com/gofrs/uuid"
)

// MACPattern matches the locally-administered, unicast MAC addresses this
// engine generates: 02:16:3e:XX:XX:XX.
var MACPattern = regexp.MustCompile(`^02:16:3e:[0-9a-f]{2}:[0-9a-f]{2}:[0-9a-f]{2}$`)

// VirtualInterface (VIF) is the binding of an instance to a network via a
// generated MAC address. Exactly one VIF exists per (instance, network)
// pair, enforced by a unique index at the store layer.
type VirtualInterface struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	MACAddress string    `json:"mac_address" db:"mac_address"`
	InstanceID uuid.UUID `json:"instance_id" db:"instance_id"`
	NetworkID  uuid.UUID `json:"network_id" db:"network_id"`
}

func (VirtualInterface) TableName() string {
	return "virtual_interfaces"
}

func (v *VirtualInterface) Validate(tx *pop.Connection) (*validate.Errors, error) {
	errs := validate.Validate(
		&validators.StringIsPresent{Field: v.MACAddress, Name: "MACAddress"},
	)
	if v.MACAddress != "" && !MACPattern.MatchString(v.MACAddress) {
		errs.Add("MACAddress", "mac address does not match the locally-administered pattern")
	}
	return errs, nil
}
