package db

import (
	"fmt"
	"net/url"
	"strings"
)

// WithDBName returns a DSN identical to the input but with the database path replaced.
// Supports postgres:// and postgresql:// schemes.
func WithDBName(dsn, database string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("empty DSN")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
	}
	u.Path = "/" + strings.TrimPrefix(database, "/")
	return u.String(), nil
}

// ModeDSN resolves a per-mode database setting: a full DSN is used as is,
// a bare name is placed on the cluster DSN.
func ModeDSN(clusterDSN, target string) (string, error) {
	if strings.Contains(target, "://") {
		return target, nil
	}
	if target == "" {
		return "", fmt.Errorf("empty database name")
	}
	return WithDBName(clusterDSN, target)
}
