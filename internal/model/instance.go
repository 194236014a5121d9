package model

import "github.com/gofrs/uuid"

// Instance is the core's view of a guest instance: an opaque identifier
// plus the two fields the allocation engine actually consults. Everything
// else about the instance belongs to the compute subsystem, not to
// network-host.
type Instance struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ProjectID      string    `json:"project_id" db:"project_id"`
	InstanceTypeID uuid.UUID `json:"instance_type_id" db:"instance_type_id"`
}

// InstanceType carries the attributes network-info assembly and network
// selection need from the compute instance-type catalog: the metered
// transmit/receive cap reported alongside each interface, and (optionally)
// the subset of networks this type is allowed to join. A nil or empty
// NetworkIDs means unrestricted — every type defaults to seeing every
// network unless configured otherwise.
type InstanceType struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	Name       string      `json:"name" db:"name"`
	RXTXCap    int         `json:"rxtx_cap" db:"rxtx_cap"`
	NetworkIDs []uuid.UUID `json:"network_ids" db:"-"`
}

func (InstanceType) TableName() string {
	return "instance_types"
}
