package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/auth"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/service"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	cards        *service.CardService
	customers    *service.CustomerService
	menu         *service.MenuService
	analytics    *service.AnalyticsService
	guard        *auth.Guard
	publicOrigin string
	tokenAuth    *jwtauth.JWTAuth
}

func NewHandler(cards *service.CardService, customers *service.CustomerService, menu *service.MenuService,
	analytics *service.AnalyticsService, guard *auth.Guard, publicOrigin string) *Handler {
	return &Handler{
		cards:        cards,
		customers:    customers,
		menu:         menu,
		analytics:    analytics,
		guard:        guard,
		publicOrigin: publicOrigin,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) ok(w http.ResponseWriter, message string, data interface{}) {
	h.CreateResponse(w, Response{Message: message, Code: http.StatusOK, Data: data})
}

// fail maps domain errors to a status and a generic body; details stay in the log.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		code = http.StatusInternalServerError
		msg  = "error, try again"
	)
	switch {
	case errors.Is(err, models.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrInvalidInput):
		code, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, models.ErrCardNotRedeemable):
		code, msg = http.StatusConflict, "card is not ready for redemption"
	case errors.Is(err, models.ErrConflict):
		code, msg = http.StatusConflict, "conflict"
	}

	entry := log.WithFields(log.Fields{"path": r.URL.Path, "status": code})
	if code == http.StatusInternalServerError {
		entry.Errorf("request failed: %v", err)
	} else {
		entry.Debugf("request rejected: %v", err)
	}
	h.CreateResponse(w, Response{Message: msg, Code: code, Error: msg})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched when
// allowEmpty is set.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Join(models.ErrInvalidInput, err)
	}
	return nil
}

// clientAddr is the caller's IP. RealIP has already replaced RemoteAddr when
// the request came through a proxy.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "loyalty service is running", nil)
}
