package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var embedded embed.FS

// DefaultDir is where cmd/migrate writes new migration files.
const DefaultDir = "pkg/migrate/migrations"

// RequiredTables are the three aggregates the service reads and writes. Each
// must be created by some migration.
var RequiredTables = []string{"orders", "order_statuses", "webhook_logs"}

var migrationNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// Source resolves the migration set: the embedded files when dir is empty,
// otherwise the files on disk under dir.
func Source(dir string) fs.FS {
	if strings.TrimSpace(dir) == "" {
		return Embedded()
	}
	return os.DirFS(dir)
}

// Validate checks file naming, goose annotations and version uniqueness, and
// that every required table is created somewhere in the set.
func Validate(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no migrations found")
	}
	sort.Strings(names)

	versions := make(map[string]string, len(names))
	created := make(map[string]bool, len(RequiredTables))
	for _, name := range names {
		m := migrationNameRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := versions[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		body := string(raw)
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(body, marker) {
				return fmt.Errorf("migration %q missing %q", name, marker)
			}
		}
		for _, table := range RequiredTables {
			if strings.Contains(body, "CREATE TABLE IF NOT EXISTS "+table+" ") ||
				strings.Contains(body, "CREATE TABLE IF NOT EXISTS "+table+"\n") ||
				strings.Contains(body, "CREATE TABLE IF NOT EXISTS "+table+"(") {
				created[table] = true
			}
		}
	}

	var missing []string
	for _, table := range RequiredTables {
		if !created[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no migration creates table(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
