package database

import (
	"context"
	"testing"
	"time"

	"hyip-ledger/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgres_RequiresURL(t *testing.T) {
	_, err := NewPostgres(context.Background(), config.PostgresConfig{})
	assert.ErrorContains(t, err, "POSTGRES_URL")
}

func TestConfigurePool(t *testing.T) {
	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	configurePool(db, config.PostgresConfig{MaxOpenConns: 7, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)

	// Zero values keep whatever the pool already had.
	configurePool(db, config.PostgresConfig{})
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}
