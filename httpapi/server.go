// Package httpapi exposes the token issuer over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog"

	jaasjwt "github.com/bionicotaku/lingo-utils-jaasjwt"
)

// TokenIssuer mints a token for a decoded request.
type TokenIssuer interface {
	IssueToken(ctx context.Context, req jaasjwt.TokenRequest) (string, error)
}

// KeyPublisher returns the public verification keys.
type KeyPublisher interface {
	PublicKeys(ctx context.Context) (jwk.Set, error)
}

// Authenticator validates the Authorization header of a token request.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*jaasjwt.Caller, error)
}

// Config holds the transport settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// MaxBodyBytes caps the request body size.
	MaxBodyBytes int64
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Issuer        TokenIssuer
	Keys          KeyPublisher
	Authenticator Authenticator
	Logger        zerolog.Logger
}

// Server is the HTTP front end of the token issuer.
type Server struct {
	Router *mux.Router
	srv    *http.Server
}

// NewServer wires the routes and middleware.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}

	router := NewRouter(deps, cfg.MaxBodyBytes)
	handler := withRequestLogging(deps.Logger, cors(cfg.AllowedOrigins)(router))
	return &Server{
		Router: router,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// NewRouter registers the token, JWKS and health routes.
func NewRouter(deps Deps, maxBody int64) *mux.Router {
	h := &tokenHandlers{deps: deps, maxBody: maxBody}
	r := mux.NewRouter()
	for _, path := range []string{"/", "/token"} {
		r.HandleFunc(path, h.issue).Methods(http.MethodPost)
		r.HandleFunc(path, h.preflight).Methods(http.MethodOptions)
	}
	r.HandleFunc("/.well-known/jwks.json", h.jwks).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	return r
}

const allowedMethods = "POST, OPTIONS"

// cors applies gorilla's CORS handling for the configured origins. OPTIONS requests that
// are not a preflight from an allowed origin are answered by the router.
func cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[o] = struct{}{}
		}
	}
	originAllowed := func(origin string) bool {
		_, ok := allowed[origin]
		return ok
	}
	return func(next http.Handler) http.Handler {
		withCORS := handlers.CORS(
			handlers.AllowedOriginValidator(originAllowed),
			handlers.AllowedMethods(strings.Split(allowedMethods, ", ")),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
			handlers.OptionStatusCode(http.StatusNoContent),
		)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				if !originAllowed(r.Header.Get("Origin")) || r.Header.Get("Access-Control-Request-Method") == "" {
					next.ServeHTTP(w, r)
					return
				}
				// gorilla omits Allow-Methods for simple methods such as POST.
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			}
			withCORS.ServeHTTP(w, r)
		})
	}
}
