package auth

import (
	"crypto/hmac"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	sessionBucket = time.Hour
	tokenLength   = 64 // hex of a SHA-256 MAC
)

func bucketOf(t time.Time) int64 {
	return t.Unix() / int64(sessionBucket/time.Second)
}

func (g *Guard) sessionToken(bucket int64) string {
	return hex.EncodeToString(mac(g.secret, "admin-session:"+strconv.FormatInt(bucket, 10)))
}

// IssueSession mints the token for the hour bucket containing now.
func (g *Guard) IssueSession(now time.Time) string {
	return g.sessionToken(bucketOf(now))
}

// VerifySession accepts tokens minted in the current or the previous hour bucket.
func (g *Guard) VerifySession(token string, now time.Time) bool {
	if len(g.secret) == 0 || len(token) != tokenLength {
		return false
	}
	b := bucketOf(now)
	cur := hmac.Equal([]byte(token), []byte(g.sessionToken(b)))
	prev := hmac.Equal([]byte(token), []byte(g.sessionToken(b-1)))
	return cur || prev
}

// Now exposes the guard clock to callers that verify sessions.
func (g *Guard) Now() time.Time {
	return g.now()
}
