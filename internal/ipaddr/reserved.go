package ipaddr

// ReservedSlots is "bottom reserved" and "top reserved" counts for a
// network's FixedIP pool, a plain struct instead of counts growing
// implicitly with policy inheritance depth. The engine picks the base or
// VLAN value per network when create_networks materializes its pool; no
// policy stores one.
type ReservedSlots struct {
	Bottom int
	Top    int
}

// Count returns the total number of reserved rows this policy materializes
// for a network.
func (r ReservedSlots) Count() int {
	return r.Bottom + r.Top
}

// BaseReservedSlots is the Flat/FlatDHCP reservation: network address and
// gateway at the bottom, broadcast at the top.
func BaseReservedSlots() ReservedSlots {
	return ReservedSlots{Bottom: 2, Top: 1}
}

// VLANReservedSlots is the VLAN policy reservation: the base slots plus the
// vpn private address at the bottom and cntVPNClients additional slots at
// the top for vpn client addresses.
func VLANReservedSlots(cntVPNClients int) ReservedSlots {
	base := BaseReservedSlots()
	return ReservedSlots{Bottom: base.Bottom + 1, Top: base.Top + cntVPNClients}
}
