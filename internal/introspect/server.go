// Package introspect provides a debug-only HTTP surface over a running
// Shell: the live registry's topics, the composed grammar as JSON, the
// currently bound response topics, and recent dispatch history from
// internal/audit. It is gated behind a single bcrypt-hashed bearer token
// (see auth.go) rather than a user database, since there is exactly one
// principal: whoever operates the shell process.
//
// Routing follows the teacher's server package: go-chi/chi/v5 for the
// mux, an httpEndpoint wrapper that recovers panics into HTTP-500 and logs
// every response (server/api/api.go's httpEndpoint/panicTo500).
package introspect

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mistwave/unicornsh/internal/audit"
	"github.com/mistwave/unicornsh/internal/grammar"
	"github.com/mistwave/unicornsh/internal/shell"
)

// Server is the introspection HTTP surface.
type Server struct {
	sh     *shell.Shell
	store  *audit.Store
	auth   *auth
	router chi.Router
}

// New builds a Server routed at "/". tokenHash is a bcrypt hash produced by
// HashToken; jwtSecret signs the short-lived bearer tokens login issues.
// store may be nil, in which case /history reports 404.
func New(sh *shell.Shell, store *audit.Store, tokenHash string, jwtSecret []byte) *Server {
	s := &Server{
		sh:    sh,
		store: store,
		auth:  newAuth(tokenHash, jwtSecret),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Post("/token", httpEndpoint(s.handleLogin))

	r.Group(func(r chi.Router) {
		r.Use(s.auth.requireAuth)
		r.Get("/registry", httpEndpoint(s.handleRegistry))
		r.Get("/grammar", httpEndpoint(s.handleGrammar))
		r.Get("/bindings", httpEndpoint(s.handleBindings))
		r.Get("/history", httpEndpoint(s.handleHistory))
		r.Get("/history/{topic}", httpEndpoint(s.handleHistoryByTopic))
	})

	return r
}

type endpointFunc func(req *http.Request) result

func httpEndpoint(ep endpointFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer panicTo500(w, req)
		r := ep(req)
		logResponse(req, r.status)
		r.write(w)
	}
}

func panicTo500(w http.ResponseWriter, req *http.Request) {
	if p := recover(); p != nil {
		logResponse(req, http.StatusInternalServerError)
		errResult(http.StatusInternalServerError, fmt.Sprintf("panic: %v\n%s", p, debug.Stack())).write(w)
	}
}

func logResponse(req *http.Request, status int) {
	log.Printf("introspect %s %s: HTTP-%d", req.Method, req.URL.Path, status)
}

type loginRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(req *http.Request) result {
	var body loginRequest
	if err := decodeJSON(req, &body); err != nil {
		return errResult(http.StatusBadRequest, err.Error())
	}

	tok, err := s.auth.login(body.Token)
	if err != nil {
		return errResult(http.StatusUnauthorized, "invalid token")
	}

	return ok(map[string]string{"bearer": tok})
}

func (s *Server) handleRegistry(req *http.Request) result {
	return ok(map[string]interface{}{"topics": s.sh.Registry().Topics()})
}

func (s *Server) handleGrammar(req *http.Request) result {
	reg := s.sh.Registry()
	if reg.Composite == nil {
		return ok(nil)
	}
	return ok(grammar.ToDict(reg.Composite))
}

func (s *Server) handleBindings(req *http.Request) result {
	stdout, stderr, res := s.sh.Bindings()
	return ok(map[string]*string{"stdout": stdout, "stderr": stderr, "result": res})
}

func (s *Server) handleHistory(req *http.Request) result {
	if s.store == nil {
		return errResult(http.StatusNotFound, "audit history is not enabled")
	}
	limit := parseLimit(req)

	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	entries, err := s.store.Recent(ctx, limit)
	if err != nil {
		return errResult(http.StatusInternalServerError, err.Error())
	}
	return ok(entries)
}

func (s *Server) handleHistoryByTopic(req *http.Request) result {
	if s.store == nil {
		return errResult(http.StatusNotFound, "audit history is not enabled")
	}
	topic := chi.URLParam(req, "topic")
	limit := parseLimit(req)

	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	entries, err := s.store.ByTopic(ctx, topic, limit)
	if err != nil {
		return errResult(http.StatusInternalServerError, err.Error())
	}
	return ok(entries)
}

func parseLimit(req *http.Request) int {
	const defaultLimit = 50
	q := req.URL.Query().Get("limit")
	if q == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return n
}
