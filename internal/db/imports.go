package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gsarrco/MuoVErsi/internal/service"
)

// The schedule importer builds a fresh database per transport mode on every
// run, names it after the mode (e.g. "navigazione_20240301"), and records
// each successful build in public.latest_successful_imports(db_name,
// imported_at) of the cluster's 'postgres' database. Older builds are kept
// until cleaned up, so the newest matching row is the one to serve.

// importNamePattern is the ILIKE pattern selecting a mode's builds.
func importNamePattern(mode service.Mode) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(mode.String()) + "%"
}

// ResolveLatestImport returns the name of the newest schedule database built
// for mode, or ErrNotFound when the importer has not produced one yet.
func ResolveLatestImport(ctx context.Context, meta *sql.DB, mode service.Mode) (string, error) {
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE $1
ORDER BY imported_at DESC
LIMIT 1`
	var name sql.NullString
	err := meta.QueryRowContext(ctx, q, importNamePattern(mode)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no %s schedule imported: %w", mode, ErrNotFound)
	}
	if err != nil {
		return "", unavailable("query latest import", err)
	}
	if !name.Valid || name.String == "" {
		return "", fmt.Errorf("empty db_name for %s import: %w", mode, ErrNotFound)
	}
	return name.String, nil
}
