package migrations

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-checkin/internal/logger"
)

func TestInitializeRequiresDirectory(t *testing.T) {
	bunDB := bun.NewDB(&sql.DB{}, pgdialect.New())
	r := NewRunner(bunDB, Options{Dir: t.TempDir() + "/missing"}, logger.Discard())

	err := r.Initialize()
	assert.ErrorContains(t, err, "migrations directory does not exist")
	assert.NoError(t, r.Close())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "./migrations", opts.Dir)
	assert.True(t, opts.AutoMigrate)
}
