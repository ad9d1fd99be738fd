package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/affmigrate/internal/permissions"
	"github.com/desertthunder/affmigrate/internal/shared"
)

// PrincipalHeader carries the login of the acting user. It is only read when the
// server trusts the proxy in front of it.
const PrincipalHeader = "X-Principal"

// RequestIDHeader echoes the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs one line per request with its status and duration.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", w.Header().Get(RequestIDHeader),
			)
		})
	}
}

// RequestIDMiddleware assigns a request id unless the client sent one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = shared.GenerateID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// PrincipalMiddleware attaches the acting login to the request context.
//
// A bearer token listed in cfg.Tokens names the login. Without a known token the
// request carries no principal, unless cfg.TrustedProxy is set and [PrincipalHeader]
// is present.
func PrincipalMiddleware(cfg shared.ServerConfig, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if login, ok := principalOf(r, cfg); ok {
				r = r.WithContext(permissions.WithPrincipal(r.Context(), login))
			} else if r.Header.Get("Authorization") != "" {
				logger.Warn("rejected credential", "path", r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalOf(r *http.Request, cfg shared.ServerConfig) (string, bool) {
	if token, ok := bearerToken(r); ok {
		return loginFor(cfg.Tokens, token)
	}
	if !cfg.TrustedProxy {
		return "", false
	}
	login := strings.TrimSpace(r.Header.Get(PrincipalHeader))
	return login, login != ""
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// loginFor compares token against every configured token in constant time.
func loginFor(tokens map[string]string, token string) (string, bool) {
	var login string
	for candidate, l := range tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			login = l
		}
	}
	return login, login != ""
}

// RecoverMiddleware turns a handler panic into a 500 response.
func RecoverMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("handler panic", "path", r.URL.Path, "panic", v)
					writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
