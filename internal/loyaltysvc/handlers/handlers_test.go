package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/avvvet/loyalty-services/configs"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/auth"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/service"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store/memstore"
)

const (
	testPin    = "2468"
	testOrigin = "https://cafe.example"
)

type envelope struct {
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	router   *chi.Mux
	svcToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil, 0)
}

// newTestServerWith mounts the routes behind the client address middleware
// of the service. A zero rateLimit leaves the per-IP rate limit off.
func newTestServerWith(t *testing.T, trusted []netip.Prefix, rateLimit int) *testServer {
	t.Helper()
	s := memstore.New()
	secret := []byte("handler-test-key")
	require.NoError(t, s.AdminConfig().Put(context.Background(), &models.AdminConfig{
		PinHmac:   auth.Digest(secret, testPin),
		PinLength: len(testPin),
	}))

	guard := auth.NewGuard(auth.GuardConfig{Secret: secret, Admin: s.AdminConfig()})
	h := NewHandler(
		service.NewCardService(s, nil, models.DefaultMaxStamps),
		service.NewCustomerService(s, models.DefaultMaxStamps),
		service.NewMenuService(s.Menu()),
		service.NewAnalyticsService(s, nil),
		guard,
		testOrigin,
	)
	token := h.InitAuth("jwt-test-secret")

	r := chi.NewRouter()
	r.Use(config.TrustedRealIP(trusted))
	if rateLimit > 0 {
		r.Use(httprate.LimitByIP(rateLimit, time.Minute))
	}
	h.SetRoutes(r)
	return &testServer{router: r, svcToken: token}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr *bytes.Reader
	if body == "" {
		rdr = bytes.NewReader(nil)
	} else {
		rdr = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "192.0.2.10:51234"
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	rec, env := ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"`+testPin+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

type onboardData struct {
	Customer models.Customer `json:"customer"`
	Card     struct {
		models.Card
		URL string `json:"url"`
	} `json:"card"`
	Existing bool `json:"existing"`
}

func (ts *testServer) onboard(t *testing.T, phone string) onboardData {
	t.Helper()
	rec, env := ts.do(t, http.MethodPost, "/v1/onboarding", `{"name":"Luis","phone":"`+phone+`","consentWhatsApp":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data onboardData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestOnboardAndViewCard(t *testing.T) {
	ts := newTestServer(t)
	data := ts.onboard(t, "55 1234 5678")

	assert.False(t, data.Existing)
	assert.Equal(t, testOrigin+"/card/"+data.Card.ID, data.Card.URL)
	assert.Equal(t, models.CardActive, data.Card.Status)

	rec, _ := ts.do(t, http.MethodGet, "/v1/cards/"+data.Card.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := ts.do(t, http.MethodGet, "/v1/cards/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", env.Error)

	rec, _ = ts.do(t, http.MethodPost, "/v1/onboarding", `{"phone":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/v1/onboarding", `{"phone":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesNeedSession(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/v1/admin/customers", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/customers", "", "Authorization", "Bearer "+strings.Repeat("0", 64))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := ts.login(t)
	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/customers", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/customers", "", sessionHeader, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPinInfo(t *testing.T) {
	ts := newTestServer(t)
	rec, env := ts.do(t, http.MethodGet, "/v1/admin/pin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pinLength":4}`, string(env.Data))
}

func TestSessionBlocksAfterRepeatedFailures(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < auth.DefaultMaxAttempts-1; i++ {
		rec, env := ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"0000"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid pin", env.Error)
	}

	rec, _ := ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"0000"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"`+testPin+`"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestForwardedHeadersCannotDodgePinLimit(t *testing.T) {
	ts := newTestServer(t)

	spoof := func(i int) []string {
		ip := "10.0.0." + strconv.Itoa(i)
		return []string{"X-Forwarded-For", ip, "X-Real-IP", ip}
	}
	for i := 1; i < auth.DefaultMaxAttempts; i++ {
		rec, _ := ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"0000"}`, spoof(i)...)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i)
	}
	rec, _ := ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"0000"}`, spoof(auth.DefaultMaxAttempts)...)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"`+testPin+`"}`, spoof(99)...)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestTrustedProxyKeepsClientsApart(t *testing.T) {
	// do() connects from 192.0.2.10, which plays the reverse proxy here
	ts := newTestServerWith(t, []netip.Prefix{netip.MustParsePrefix("192.0.2.10/32")}, 0)

	for i := 0; i < auth.DefaultMaxAttempts; i++ {
		rec, _ := ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"0000"}`,
			"X-Forwarded-For", "203.0.113.1")
		if i < auth.DefaultMaxAttempts-1 {
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}

	// a hop forged to the left of the proxy's entry changes nothing
	rec, _ := ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"`+testPin+`"}`,
		"X-Forwarded-For", "198.51.100.50, 203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/session", `{"pin":"`+testPin+`"}`,
		"X-Forwarded-For", "203.0.113.2")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitIgnoresForwardedHeaders(t *testing.T) {
	ts := newTestServerWith(t, nil, 3)

	for i := 1; i <= 3; i++ {
		rec, _ := ts.do(t, http.MethodGet, "/v1/cards/nope", "", "X-Forwarded-For", "10.0.0."+strconv.Itoa(i))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec, _ := ts.do(t, http.MethodGet, "/v1/cards/nope", "", "X-Forwarded-For", "10.0.0.4")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestStampAndRedeemFlow(t *testing.T) {
	ts := newTestServer(t)
	card := ts.onboard(t, "5512345678").Card
	token := ts.login(t)
	authz := []string{"Authorization", "Bearer " + token}

	rec, env := ts.do(t, http.MethodGet, "/v1/admin/cards/lookup?q="+testOrigin+"/card/"+card.ID, "", authz...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"customer"`)

	// redeeming too early is refused
	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/cards/"+card.ID+"/redeem", "", authz...)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var snap models.CardSnapshot
	for i := 0; i < 6; i++ {
		body := ""
		if i == 0 {
			body = `{"drinkType":"Latte","size":"12oz"}`
		}
		rec, env = ts.do(t, http.MethodPost, "/v1/admin/cards/"+card.ID+"/stamps", body, authz...)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, &snap))
	}
	assert.Equal(t, models.CardSnapshot{Stamps: 5, MaxStamps: 5, Status: models.CardCompleted}, snap)

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/cards/"+card.ID+"/stamps", `{"source":"redemption"}`, authz...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = ts.do(t, http.MethodPost, "/v1/admin/cards/"+card.ID+"/redeem", "", authz...)
	require.Equal(t, http.StatusOK, rec.Code)
	var redeemed struct {
		Card models.Card `json:"card"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &redeemed))
	assert.Equal(t, 0, redeemed.Card.Stamps)
	assert.NotEqual(t, card.ID, redeemed.Card.ID)

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/cards/"+card.ID+"/redeem", "", authz...)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = ts.do(t, http.MethodGet, "/v1/cards/"+card.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		CurrentCardID string `json:"currentCardId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, redeemed.Card.ID, view.CurrentCardID)

	rec, env = ts.do(t, http.MethodGet, "/v1/cards/"+card.ID+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.StampEvent
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 6)

	rec, env = ts.do(t, http.MethodGet, "/v1/admin/analytics", "", authz...)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum service.Summary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.EqualValues(t, 1, sum.TotalRedemptions)
	assert.Equal(t, 5, sum.WeekStamps)
	require.NotEmpty(t, sum.TopDrinks)
	assert.Equal(t, "Latte", sum.TopDrinks[0].Name)
}

func TestCustomerAdmin(t *testing.T) {
	ts := newTestServer(t)
	data := ts.onboard(t, "5512345678")
	authz := []string{sessionHeader, ts.login(t)}

	rec, _ := ts.do(t, http.MethodGet, "/v1/admin/customers/lookup?phone=55-1234-5678", "", authz...)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodPatch, "/v1/admin/customers/"+data.Customer.ID+"/notes", `{"notes":"extra caliente"}`, authz...)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := ts.do(t, http.MethodGet, "/v1/admin/customers/"+data.Customer.ID+"/card", "", authz...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), data.Card.ID)

	rec, _ = ts.do(t, http.MethodDelete, "/v1/admin/customers/"+data.Customer.ID, "", authz...)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/v1/admin/customers/lookup?phone=5512345678", "", authz...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMenuAdmin(t *testing.T) {
	ts := newTestServer(t)
	authz := []string{sessionHeader, ts.login(t)}

	rec, env := ts.do(t, http.MethodPost, "/v1/admin/menu/sections", `{"title":"Especiales","type":"drink","order":2,"active":true}`, authz...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sec models.MenuSection
	require.NoError(t, json.Unmarshal(env.Data, &sec))

	item := `{"name":"Latte Praliné","sizes":[{"label":"10 oz","price":"45"},{"label":"12 oz","price":52}],"available":true,"seasonal":true}`
	rec, env = ts.do(t, http.MethodPost, "/v1/admin/menu/sections/"+sec.ID+"/items", item, authz...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created models.MenuItem
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.Sizes, 2)
	assert.Equal(t, "52", created.Sizes[1].Price.String())

	rec, env = ts.do(t, http.MethodGet, "/v1/menu", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var menu []models.MenuSection
	require.NoError(t, json.Unmarshal(env.Data, &menu))
	require.Len(t, menu, 1)
	assert.Len(t, menu[0].Items, 1)

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/menu/sections/"+sec.ID+"/items", `{"name":"Gratis"}`, authz...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodDelete, "/v1/admin/menu/sections/"+sec.ID+"/items/"+created.ID, "", authz...)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodDelete, "/v1/admin/menu/sections/"+sec.ID, "", authz...)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodDelete, "/v1/admin/menu/sections/"+sec.ID, "", authz...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthNeedsServiceToken(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/v1/health", "", "Authorization", "Bearer "+ts.svcToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}
