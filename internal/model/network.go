// Package model holds the persistent entities the network-host core
// operates on: Network, FixedIP, VirtualInterface and FloatingIP. These
// are plain gobuffalo/pop models — the core never mutates them directly,
// only through the Store contract in internal/store.
package model

import (
	"time"

	"github.com/gobuffalo/pop/v6"
	"github.com/gobuffalo/validate/v3"
	"github.com/gobuffalo/validate/v3/validators"
	"github.com/gofrs/uuid"
)

// Network is one logical L2/L3 segment carved out by create_networks and
// claimed by at most one host at a time.
type Network struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Label     string    `json:"label" db:"label"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	CIDR   string  `json:"cidr" db:"cidr"`
	CIDRv6 *string `json:"cidr_v6" db:"cidr_v6"`

	Netmask   string  `json:"netmask" db:"netmask"`
	NetmaskV6 *string `json:"netmask_v6" db:"netmask_v6"`

	Gateway   string  `json:"gateway" db:"gateway"`
	GatewayV6 *string `json:"gateway_v6" db:"gateway_v6"`
	Broadcast string  `json:"broadcast" db:"broadcast"`
	DHCPStart string  `json:"dhcp_start" db:"dhcp_start"`

	Bridge          string `json:"bridge" db:"bridge"`
	BridgeInterface string `json:"bridge_interface" db:"bridge_interface"`
	VLAN            *int   `json:"vlan" db:"vlan"`

	VPNPublicAddress  *string `json:"vpn_public_address" db:"vpn_public_address"`
	VPNPublicPort     *int    `json:"vpn_public_port" db:"vpn_public_port"`
	VPNPrivateAddress *string `json:"vpn_private_address" db:"vpn_private_address"`

	DNS       string `json:"dns" db:"dns"`
	Injected  bool   `json:"injected" db:"injected"`
	MultiHost bool   `json:"multi_host" db:"multi_host"`

	// Host is nil until a network-host claims the network via
	// network_set_host. At most one claim is ever active.
	Host *string `json:"host" db:"host"`
}

// TableName satisfies pop's TableNameAble interface.
func (Network) TableName() string {
	return "networks"
}

// Validate runs pop's pre-save validation: a label, CIDR and gateway are
// required, everything else is either derived or operator-optional.
func (n *Network) Validate(tx *pop.Connection) (*validate.Errors, error) {
	return validate.Validate(
		&validators.StringIsPresent{Field: n.Label, Name: "Label"},
		&validators.StringIsPresent{Field: n.CIDR, Name: "CIDR"},
		&validators.StringIsPresent{Field: n.Gateway, Name: "Gateway"},
	), nil
}

// IsClaimed reports whether a network-host currently owns this network.
func (n *Network) IsClaimed() bool {
	return n.Host != nil && *n.Host != ""
}

// IsVLAN reports whether the network carries VLAN/VPN policy fields.
func (n *Network) IsVLAN() bool {
	return n.VLAN != nil
}

// HasIPv6 reports whether a v6 prefix was configured for this network.
func (n *Network) HasIPv6() bool {
	return n.CIDRv6 != nil && *n.CIDRv6 != ""
}
