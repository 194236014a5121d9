package sqlstore

import (
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrateUp applies every embedded *.up.sql script in filename order. There
// is no per-version tracking table yet: the schema is young enough that a
// single idempotent (IF NOT EXISTS) script covers it, without pulling in
// gobuffalo/fizz's migration-box machinery for one file.
func (s *Store) MigrateUp() error {
	return s.runMigrations(".up.sql")
}

// MigrateDown reverses the schema. steps is accepted for Migrator
// compatibility but ignored: down scripts are applied in full, in reverse
// filename order.
func (s *Store) MigrateDown(steps int) error {
	return s.runMigrations(".down.sql")
}

func (s *Store) runMigrations(suffix string) error {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "reading embedded migrations")
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if suffix == ".down.sql" {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}

	for _, name := range names {
		body, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return errors.Wrapf(err, "reading migration %s", name)
		}
		if err := s.conn.RawQuery(string(body)).Exec(); err != nil {
			return errors.Wrapf(err, "applying migration %s", name)
		}
	}
	return nil
}
