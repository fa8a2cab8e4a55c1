package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/memstore"
)

func TestProvisionThenVerify(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	key := []byte("provision-key")
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

	cfg, err := Provision(ctx, st.AdminConfig(), key, "12345", now)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.PinLength)
	assert.Len(t, cfg.PinHmac, 64)

	g := NewGuard(GuardConfig{Secret: key, Admin: st.AdminConfig()})
	assert.Equal(t, Granted, g.VerifyPin(ctx, "12345", "10.0.0.1").Status)
	assert.Equal(t, 5, g.PinLength(ctx))

	// re-provisioning replaces the old PIN
	_, err = Provision(ctx, st.AdminConfig(), key, "987654", now)
	require.NoError(t, err)
	assert.Equal(t, Denied, g.VerifyPin(ctx, "12345", "10.0.0.1").Status)
	assert.Equal(t, Granted, g.VerifyPin(ctx, "987654", "10.0.0.1").Status)
}

func TestProvisionRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	admin := memstore.New().AdminConfig()

	for _, pin := range []string{"", "123", "12a45", "1234567890123", "١٢٣٤", "١٢", "１２３４"} {
		_, err := Provision(ctx, admin, []byte("k"), pin, time.Now())
		assert.ErrorIs(t, err, models.ErrInvalidInput, pin)
	}
	_, err := Provision(ctx, admin, nil, "1234", time.Now())
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = admin.Get(ctx)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
