package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avvvet/loyalty-services/internal/db"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/storetest"
)

// TestStore needs a replica set, e.g.
// TEST_MONGODB_URI=mongodb://localhost:27017/?replicaSet=rs0
func TestStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}

	database, err := db.ConnectToDB(uri)
	require.NoError(t, err)

	scratch := database.Client().Database(fmt.Sprintf("loyalty_test_%d", time.Now().UnixNano()))
	s := New(scratch)

	ctx := context.Background()
	require.NoError(t, s.EnsureIndexes(ctx))
	t.Cleanup(func() {
		_ = scratch.Drop(ctx)
		_ = s.Close(ctx)
	})

	storetest.Run(t, s)
}
