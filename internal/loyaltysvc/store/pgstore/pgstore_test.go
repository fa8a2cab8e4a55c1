package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/db"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/storetest"
)

// TestStore runs against a throwaway database; every table is emptied first.
func TestStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}

	pool, err := db.Connect(dsn)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE customers, cards, stamp_events, rewards, menu_sections, admin_config`)
	require.NoError(t, err)

	s := New(pool)
	t.Cleanup(func() { _ = s.Close(ctx) })

	storetest.Run(t, s)
}
