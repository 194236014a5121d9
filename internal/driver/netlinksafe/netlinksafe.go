// Package netlinksafe wraps the subset of vishvananda/netlink calls the
// netlinkdriver issues with retry-on-interrupt handling: a netlink dump can
// come back truncated (ErrDumpInterrupted) under load, and callers should
// not have to special-case that themselves.
package netlinksafe

import (
	"log"

	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
)

const maxAttempts = 5

// Handle wraps a netlink.Handle, adding retry semantics to its
// dump-returning calls.
type Handle struct {
	*netlink.Handle
}

// NewHandle opens a netlink handle for the given families (pass none for
// all families).
func NewHandle(families ...int) (Handle, error) {
	h, err := netlink.NewHandle(families...)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Handle: h}, nil
}

func (h Handle) Close() {
	if h.Handle != nil {
		h.Handle.Close()
	}
}

func retryOnIntr(f func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = f(); !errors.Is(err, netlink.ErrDumpInterrupted) {
			return discard(err)
		}
	}
	log.Printf("netlink call interrupted after %d attempts", maxAttempts)
	return discard(err)
}

func discard(err error) error {
	if errors.Is(err, netlink.ErrDumpInterrupted) {
		return nil
	}
	return err
}

// LinkByName retries h.Handle.LinkByName: on older kernels a bare lookup
// falls back to a link dump, which can come back inconsistent.
func (h Handle) LinkByName(name string) (netlink.Link, error) {
	var link netlink.Link
	err := retryOnIntr(func() (err error) {
		link, err = h.Handle.LinkByName(name)
		return err
	})
	return link, err
}

// AddrList retries h.Handle.AddrList.
func (h Handle) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	var addrs []netlink.Addr
	err := retryOnIntr(func() (err error) {
		addrs, err = h.Handle.AddrList(link, family)
		return err
	})
	return addrs, err
}
