package db

import (
	"testing"

	"github.com/gsarrco/MuoVErsi/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDBName(t *testing.T) {
	got, err := WithDBName("postgres://u:p@localhost:5432/postgres?sslmode=disable", "venezia_aut")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/venezia_aut?sslmode=disable", got)

	got, err = WithDBName("localhost:5432/x", "/nav")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/nav", got)

	_, err = WithDBName("", "nav")
	assert.Error(t, err)

	_, err = WithDBName("mysql://localhost/x", "nav")
	assert.Error(t, err)
}

func TestModeDSN(t *testing.T) {
	full := "postgresql://other:5432/ferries"
	got, err := ModeDSN("postgres://localhost:5432/postgres", full)
	require.NoError(t, err)
	assert.Equal(t, full, got)

	got, err = ModeDSN("postgres://localhost:5432/postgres", "buses")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/buses", got)

	_, err = ModeDSN("postgres://localhost:5432/postgres", "")
	assert.Error(t, err)
}

func TestImportNamePattern(t *testing.T) {
	assert.Equal(t, "%navigazione%", importNamePattern(service.Navigazione))
	assert.Equal(t, "%automobilistico%", importNamePattern(service.Automobilistico))
}
