package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Set a Decoder instance as a package global, because it caches
// meta-data about structs, and an instance can be shared safely.
var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}

const maxBodyBytes = 1 << 20

// ResponseStatus is the outcome flag of every response.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "SUCCESS"
	StatusError   ResponseStatus = "ERROR"
)

// Response is the envelope shared by every endpoint.
//
// Successful responses carry exactly one payload field, error responses carry Errors.
type Response struct {
	Status    ResponseStatus      `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Path      string              `json:"path"`
	Errors    []map[string]string `json:"errors,omitempty"`

	User        *AccountView `json:"user,omitempty"`
	Tokens      *Tokens      `json:"tokens,omitempty"`
	Subject     string       `json:"subject,omitempty"`
	Authorities []string     `json:"authorities,omitzero"`
}

// Tokens is the wire form of a TokenPair.
type Tokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// RefreshRequest is the body of the refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" schema:"refreshToken"`
}

// Server exposes an AccountService over HTTP.
type Server struct {
	Service AccountService
	Clock   clockwork.Clock
	Logger  *zap.Logger
}

// RegisterRoutes adds the account endpoints to router.
func (s Server) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/auth/v1").Subrouter()

	api.Path("/register").Methods(http.MethodPost).HandlerFunc(s.RegisterHandler)
	api.Path("/authenticate").Methods(http.MethodPost).HandlerFunc(s.AuthenticateHandler)
	api.Path("/refresh").Methods(http.MethodPost).HandlerFunc(s.RefreshHandler)
	api.Path("/me").Methods(http.MethodGet).Handler(s.RequireAuthority()(http.HandlerFunc(s.CurrentAccountHandler)))
}

// RegisterHandler creates a new account.
func (s Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var request RegistrationRequest

	if err := decodeRequest(w, r, &request); err != nil {
		s.badRequest(w, r, err)
		return
	}

	view, err := s.Service.Register(r.Context(), request)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp := s.successResponse(r)
	resp.User = &view

	s.writeResponse(w, http.StatusOK, resp)
}

// AuthenticateHandler exchanges credentials for a token pair.
func (s Server) AuthenticateHandler(w http.ResponseWriter, r *http.Request) {
	var credentials Credentials

	if err := decodeRequest(w, r, &credentials); err != nil {
		s.badRequest(w, r, err)
		return
	}

	pair, err := s.Service.Authenticate(r.Context(), credentials)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp := s.successResponse(r)
	resp.Tokens = tokensOf(pair)

	s.writeResponse(w, http.StatusOK, resp)
}

// RefreshHandler exchanges a refresh token for a new token pair.
func (s Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var request RefreshRequest

	if err := decodeRequest(w, r, &request); err != nil {
		s.badRequest(w, r, err)
		return
	}

	pair, err := s.Service.Refresh(r.Context(), request.RefreshToken)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp := s.successResponse(r)
	resp.Tokens = tokensOf(pair)

	s.writeResponse(w, http.StatusOK, resp)
}

// CurrentAccountHandler describes the bearer of the access token.
// It must run behind RequireAuthority.
func (s Server) CurrentAccountHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		s.handleError(w, r, fmt.Errorf("%w: missing bearer token", ErrInvalidToken))
		return
	}

	resp := s.successResponse(r)
	resp.Subject = claims.Subject
	resp.Authorities = claims.Authorities

	s.writeResponse(w, http.StatusOK, resp)
}

func tokensOf(pair TokenPair) *Tokens {
	return &Tokens{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return err
		}

		return decoder.Decode(v, r.PostForm)
	}

	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (s Server) successResponse(r *http.Request) Response {
	return Response{
		Status:    StatusSuccess,
		Timestamp: s.now(),
		Path:      r.URL.Path,
	}
}

func (s Server) errorResponse(r *http.Request, errs ...map[string]string) Response {
	return Response{
		Status:    StatusError,
		Timestamp: s.now(),
		Path:      r.URL.Path,
		Errors:    errs,
	}
}

func errorEntry(kind string, message string) map[string]string {
	return map[string]string{
		"error":   kind,
		"message": message,
	}
}

func (s Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.logger().Debug("malformed request", zap.String("path", r.URL.Path), zap.Error(err))

	s.writeResponse(w, http.StatusBadRequest, s.errorResponse(r, errorEntry("bad request", "malformed request body")))
}

func (s Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		entries := make([]map[string]string, 0, len(validationErr.Violations))
		for _, v := range validationErr.Violations {
			entries = append(entries, map[string]string{"field": v.Field, "message": v.Message})
		}

		s.writeResponse(w, http.StatusBadRequest, s.errorResponse(r, entries...))

	case errors.Is(err, ErrBadCredentials):
		s.writeResponse(w, http.StatusBadRequest, s.errorResponse(r, errorEntry("bad credentials", "incorrect username or password")))

	case errors.Is(err, ErrRegistrationFailed):
		s.writeResponse(w, http.StatusBadRequest, s.errorResponse(r, errorEntry("registration error", err.Error())))

	case errors.Is(err, ErrExpiredToken):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		s.writeResponse(w, http.StatusUnauthorized, s.errorResponse(r, errorEntry("expired token", "token has expired")))

	case errors.Is(err, ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		s.writeResponse(w, http.StatusUnauthorized, s.errorResponse(r, errorEntry("invalid token", "token is invalid")))

	case errors.Is(err, ErrForbidden):
		s.writeResponse(w, http.StatusForbidden, s.errorResponse(r, errorEntry("forbidden", "insufficient authority")))

	case errors.Is(err, ErrStoreUnavailable):
		s.logger().Error("store unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		sentry.CaptureException(err)

		s.writeResponse(w, http.StatusServiceUnavailable, s.errorResponse(r, errorEntry("service unavailable", "please try again later")))

	default:
		s.logger().Error("internal error", zap.String("path", r.URL.Path), zap.Error(err))
		sentry.CaptureException(err)

		s.writeResponse(w, http.StatusInternalServerError, s.errorResponse(r, errorEntry("internal error", "internal server error")))
	}
}

func (s Server) writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger().Warn("writing response failed", zap.Error(err))
	}
}

func (s Server) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}

	return s.Clock.Now().UTC()
}

func (s Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}

	return s.Logger
}
