package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/config"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/memstore"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), config.Config{StoreBackend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, s)
	assert.NoError(t, s.Close(context.Background()))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StoreBackend: "sqlite"})
	assert.ErrorContains(t, err, "sqlite")
}
