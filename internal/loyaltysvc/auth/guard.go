// Package auth guards the admin surface: PIN verification against an HMAC
// digest, per-client failed-attempt limits and stateless hourly session tokens.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

const (
	DefaultMaxAttempts = 10
	DefaultWindow      = 15 * time.Minute
)

type Status int

const (
	Denied Status = iota
	Granted
	Blocked
)

func (s Status) String() string {
	switch s {
	case Granted:
		return "granted"
	case Blocked:
		return "blocked"
	}
	return "denied"
}

// Result of a PIN check. Token is set only when Granted, RetryAfter only when Blocked.
type Result struct {
	Status     Status
	Token      string
	RetryAfter time.Duration
}

type GuardConfig struct {
	Secret      []byte
	MaxAttempts int
	Window      time.Duration
	Admin       store.AdminConfigStore
	Attempts    AttemptStore
	Now         func() time.Time
}

type Guard struct {
	secret      []byte
	maxAttempts int
	window      time.Duration
	admin       store.AdminConfigStore
	attempts    AttemptStore
	now         func() time.Time
}

func NewGuard(cfg GuardConfig) *Guard {
	g := &Guard{
		secret:      cfg.Secret,
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.Window,
		admin:       cfg.Admin,
		attempts:    cfg.Attempts,
		now:         cfg.Now,
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.window <= 0 {
		g.window = DefaultWindow
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.attempts == nil {
		g.attempts = NewMemoryAttemptStore(g.now)
	}
	if len(g.secret) == 0 {
		log.Warn("ADMIN_HMAC_KEY is empty; every PIN will be rejected")
	}
	return g
}

// Digest is the hex HMAC-SHA256 of pin under key, as stored in config/admin.
func Digest(key []byte, pin string) string {
	return hex.EncodeToString(mac(key, pin))
}

func mac(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

// VerifyPin checks pin for the client at addr. A blocked client gets Blocked
// without consuming an attempt or computing any digest. Every other call
// reserves an attempt before comparing, so concurrent guesses from one client
// never get more than maxAttempts comparisons per window.
func (g *Guard) VerifyPin(ctx context.Context, pin, addr string) Result {
	if addr == "" {
		addr = "unknown"
	}
	logger := log.WithField("client", addr)

	current, err := g.attempts.Get(ctx, addr)
	if err != nil {
		logger.Errorf("read pin attempts: %v", err)
		return Result{Status: Denied}
	}
	if current.Count >= g.maxAttempts {
		return Result{Status: Blocked, RetryAfter: g.retryAfter(current)}
	}

	reserved, err := g.attempts.Fail(ctx, addr, g.window)
	if err != nil {
		logger.Errorf("record pin attempt: %v", err)
		return Result{Status: Denied}
	}
	if reserved.Count > g.maxAttempts {
		return Result{Status: Blocked, RetryAfter: g.retryAfter(reserved)}
	}

	expected, configured := g.expectedDigest(ctx)
	candidate := mac(g.secret, pin)
	match := digestsEqual(candidate, expected)

	if match && configured {
		if err := g.attempts.Reset(ctx, addr); err != nil {
			logger.Errorf("reset pin attempts: %v", err)
		}
		logger.Info("admin session granted")
		return Result{Status: Granted, Token: g.IssueSession(g.now())}
	}

	if reserved.Count >= g.maxAttempts {
		logger.Warnf("client blocked after %d failed pin attempts", reserved.Count)
		return Result{Status: Blocked, RetryAfter: g.retryAfter(reserved)}
	}
	return Result{Status: Denied}
}

func (g *Guard) retryAfter(a Attempts) time.Duration {
	if a.Remaining > 0 {
		return a.Remaining
	}
	return g.window
}

// expectedDigest returns the stored digest, or a zero digest of the same
// length when the secret or the record is missing or malformed, so the
// comparison path runs the same either way.
func (g *Guard) expectedDigest(ctx context.Context) ([]byte, bool) {
	zero := make([]byte, sha256.Size)
	if len(g.secret) == 0 {
		return zero, false
	}

	cfg, err := g.admin.Get(ctx)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Error("admin pin is not provisioned")
		} else {
			log.Errorf("load admin config: %v", err)
		}
		return zero, false
	}

	digest, err := hex.DecodeString(cfg.PinHmac)
	if err != nil || len(digest) != sha256.Size {
		log.Error("stored admin pin digest is malformed")
		return zero, false
	}
	return digest, true
}

// digestsEqual runs in time independent of where a and b first differ.
func digestsEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// PinLength reports the provisioned PIN length, zero when unknown.
func (g *Guard) PinLength(ctx context.Context) int {
	cfg, err := g.admin.Get(ctx)
	if err != nil {
		return 0
	}
	return cfg.PinLength
}
