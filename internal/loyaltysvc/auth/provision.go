package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

const (
	MinPinLength = 4
	MaxPinLength = 12
)

// Provision stores the digest of a new admin PIN. It runs from the setpin
// command only; no HTTP route reaches it.
func Provision(ctx context.Context, admin store.AdminConfigStore, key []byte, pin string, now time.Time) (*models.AdminConfig, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("ADMIN_HMAC_KEY is empty: %w", models.ErrInvalidInput)
	}
	if len(pin) < MinPinLength || len(pin) > MaxPinLength {
		return nil, fmt.Errorf("pin must have %d to %d digits: %w", MinPinLength, MaxPinLength, models.ErrInvalidInput)
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return nil, fmt.Errorf("pin must be digits only: %w", models.ErrInvalidInput)
		}
	}

	cfg := &models.AdminConfig{
		PinHmac:   Digest(key, pin),
		PinLength: len(pin),
		UpdatedAt: now,
	}
	if err := admin.Put(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
