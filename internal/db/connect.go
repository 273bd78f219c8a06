package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/gsarrco/MuoVErsi/internal/service"
)

// Connect opens one pool per mode. targets maps each mode to a database name
// or a full DSN; an empty target is resolved from the latest successful import
// recorded in the cluster's 'postgres' database.
func Connect(ctx context.Context, clusterDSN string, targets map[service.Mode]string) (*Store, error) {
	var meta *sql.DB
	defer func() {
		if meta != nil {
			meta.Close()
		}
	}()

	dbs := make(map[service.Mode]*sql.DB, len(targets))
	closeAll := func() {
		for _, d := range dbs {
			d.Close()
		}
	}
	for mode, target := range targets {
		if target == "" {
			if meta == nil {
				rootDSN, err := WithDBName(clusterDSN, "postgres")
				if err != nil {
					closeAll()
					return nil, fmt.Errorf("invalid cluster DSN: %w", err)
				}
				if meta, err = Open(rootDSN); err != nil {
					closeAll()
					return nil, fmt.Errorf("db open (meta): %w", err)
				}
			}
			name, err := ResolveLatestImport(ctx, meta, mode)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("resolve latest import for %s: %w", mode, err)
			}
			log.Printf("Using database %q for mode %s", name, mode)
			target = name
		}
		dsn, err := ModeDSN(clusterDSN, target)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("compose DSN for %s: %w", mode, err)
		}
		d, err := Open(dsn)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("db open (%s): %w", mode, err)
		}
		dbs[mode] = d
		if err := Ping(ctx, d); err != nil {
			closeAll()
			return nil, fmt.Errorf("db ping (%s): %w: %w", mode, ErrUnavailable, err)
		}
	}
	store, err := NewStore(ctx, dbs)
	if err != nil {
		closeAll()
		return nil, err
	}
	return store, nil
}
