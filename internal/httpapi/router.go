// Package httpapi mounts the service's HTTP endpoints on a chi router.
package httpapi

import (
	"encoding/json"
	stderrs "errors"
	"net/http"

	"github.com/authforge/authcore/config"
	"github.com/authforge/authcore/database"
	"github.com/authforge/authcore/logging"
	"github.com/authforge/authcore/middleware"
	"github.com/authforge/authcore/users"
	"github.com/go-chi/chi/v5"
)

const maxPayloadBytes = 1 << 20

// Deps are the collaborators the handlers use.
type Deps struct {
	Settings *config.Settings
	Logger   logging.Logger
	DB       *database.Manager
	Users    *users.Service
}

// NewRouter returns the instrumented router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Instrument(d.Logger, middleware.OptionsFromSettings(d.Settings)))
	r.Use(middleware.Performance(d.Logger, d.Settings.Request.PerfSlow, d.Settings.Request.PerfVerySlow))

	r.Method(http.MethodGet, "/health", middleware.HealthHandler(d.DB))

	h := handlers{users: d.Users, logger: d.Logger}
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
	})
	return r
}

type handlers struct {
	users  *users.Service
	logger logging.Logger
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginResponse struct {
	User *users.User `json:"user"`
	users.TokenPair
}

func (h handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.users.Register(r.Context(), users.NewUser{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	u, pair, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{User: u, TokenPair: pair})
}

func (h handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// fail maps domain errors to status codes. Anything unexpected is logged
// and reported as a 500 without detail.
func (h handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case stderrs.Is(err, users.ErrEmailTaken), stderrs.Is(err, users.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case stderrs.Is(err, users.ErrInvalidCredentials), stderrs.Is(err, users.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case stderrs.Is(err, users.ErrInactive):
		writeError(w, http.StatusForbidden, err.Error())
	case stderrs.Is(err, users.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case stderrs.Is(err, users.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case database.KindOf(err) == database.KindConnectivity:
		h.logger.ErrorWith().Ctx(r.Context()).Err(err).Msg("Database unavailable")
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.logger.ErrorWith().Ctx(r.Context()).Err(err).Msg("Request aborted")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
