package extension

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/streamswap/store/sqlite"
)

func TestMergeConfigurations(t *testing.T) {
	e := New(
		WithAdmin("prog-admin"),
		WithFeeCollector("prog-treasury"),
		WithDisableMigrate(),
	)

	got := e.mergeConfigurations(Config{
		Admin:          "yaml-admin",
		ExitFeePercent: "0.02",
	}, e.config)

	assert.Equal(t, "yaml-admin", got.Admin)
	assert.Equal(t, "prog-treasury", got.FeeCollector)
	assert.Equal(t, "0.02", got.ExitFeePercent)
	assert.True(t, got.DisableMigrate)
	assert.Equal(t, 5*time.Second, got.HookTimeout)
}

func TestMergeWithDefaults(t *testing.T) {
	e := New()
	got := e.mergeWithDefaults(Config{})
	assert.Equal(t, DefaultConfig(), got)
}

func TestBuildEngineOpts(t *testing.T) {
	e := New(WithExitFeePercent("0.01"), WithFeeCollector("treasury"), WithAdmin("admin"))
	opts, err := e.buildEngineOpts()
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	e = New(WithExitFeePercent("one percent"))
	_, err = e.buildEngineOpts()
	assert.Error(t, err)
}

func TestStoreForDriver(t *testing.T) {
	ctx := context.Background()
	drv := sqlitedriver.New()
	require.NoError(t, drv.Open(ctx, filepath.Join(t.TempDir(), "ext.db")))
	db, err := grove.Open(drv)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := storeForDriver(db)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.Migrate(ctx))
	assert.NoError(t, s.Ping(ctx))
}
