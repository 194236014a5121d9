package sqlstore

import (
	"github.com/gobuffalo/pop/v6"
	"github.com/pkg/errors"
)

// GetConnection opens and validates a pop connection against details,
// following pop's own documented ConnectionDetails pattern.
func GetConnection(details *pop.ConnectionDetails) (*pop.Connection, error) {
	conn, err := pop.NewConnection(details)
	if err != nil {
		return nil, errors.Wrap(err, "building pop connection")
	}
	if err := conn.Open(); err != nil {
		return nil, errors.Wrap(err, "opening database connection")
	}
	return conn, nil
}
