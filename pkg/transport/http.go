package transport

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mcpforge/server/pkg/server"
)

// AuthMode selects how HTTP requests to the MCP endpoints are authenticated.
//
// Grounded on examples/mcp/with-auth/main.go's API-key and JWT checks,
// generalized into a configurable mode rather than one hardcoded server.
type AuthMode string

const (
	AuthNone     AuthMode = "none"
	AuthAPIKey   AuthMode = "apiKey"
	AuthBasic    AuthMode = "basic"
	AuthJWTHS256 AuthMode = "jwtHS256"
)

// AuthConfig configures whichever AuthMode is selected. Only the fields
// relevant to the chosen mode need to be set.
type AuthConfig struct {
	Mode AuthMode

	// APIKeys maps an API key (X-API-Key header) to an identity string, for AuthAPIKey.
	APIKeys map[string]string

	// BasicUsers maps username to password, for AuthBasic.
	BasicUsers map[string]string

	// JWTSecret is the HMAC key used to verify bearer tokens, for AuthJWTHS256.
	JWTSecret []byte
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Addr           string
	MaxBodyBytes   int64 // default 10MiB
	Auth           AuthConfig
	AllowedOrigins []string // default ["*"]
}

const defaultMaxBodyBytes = 10 << 20

// HTTP serves a Server over plain HTTP: POST /mcp/rpc for JSON-RPC calls,
// GET /mcp/health for liveness, GET /mcp/tools for a REST-shaped tool list.
//
// Grounded on examples/chi-server/main.go's router setup (chi.NewRouter,
// middleware.Logger/Recoverer/Timeout, cors.Handler).
type HTTP struct {
	Server *server.Server
	cfg    HTTPConfig
	router chi.Router
}

// NewHTTP builds an HTTP transport over srv.
func NewHTTP(srv *server.Server, cfg HTTPConfig) *HTTP {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	h := &HTTP{Server: srv, cfg: cfg}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
	}))

	r.Get("/mcp/health", h.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/mcp/tools", h.handleToolsList)
		r.Post("/mcp/rpc", h.handleRPC)
	})

	h.router = r
	return h
}

// Router returns the configured http.Handler.
func (h *HTTP) Router() http.Handler {
	return h.router
}

func (h *HTTP) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (h *HTTP) handleToolsList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"tools": h.Server.Registry.List()})
}

func (h *HTTP) handleRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		if err.Error() == "http: request body too large" {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	out, err := h.Server.Handle(r.Context(), body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if out == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	_, _ = w.Write(out)
}

// authenticate enforces h.cfg.Auth.Mode, writing a 401 and nothing further
// on failure.
func (h *HTTP) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch h.cfg.Auth.Mode {
		case "", AuthNone:
			next.ServeHTTP(w, r)
			return

		case AuthAPIKey:
			key := r.Header.Get("X-API-Key")
			for validKey := range h.cfg.Auth.APIKeys {
				if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			unauthorized(w, "invalid or missing API key")

		case AuthBasic:
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w, "missing basic auth credentials")
				return
			}
			want, exists := h.cfg.Auth.BasicUsers[username]
			if !exists || subtle.ConstantTimeCompare([]byte(password), []byte(want)) != 1 {
				unauthorized(w, "invalid basic auth credentials")
				return
			}
			next.ServeHTTP(w, r)

		case AuthJWTHS256:
			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" || tokenString == authHeader {
				unauthorized(w, "missing bearer token")
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Method)
				}
				return h.cfg.Auth.JWTSecret, nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r)

		default:
			unauthorized(w, "unknown authentication mode")
		}
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
