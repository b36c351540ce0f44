// Package api provides the HTTP surface of the digest mailer: the health
// endpoint and the unsubscribe endpoint that digest emails link to. It is a
// chi router so the same handler runs under http.ListenAndServe locally and
// behind a Lambda proxy adapter in production.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"roomdigest/internal/types"
)

// PusherRemover removes one email pusher. Implemented by db.PusherRepository.
type PusherRemover interface {
	Delete(ctx context.Context, userID, appID, pushkey string) error
}

// TokenVerifier validates unsubscribe tokens and returns the user they were
// minted for. Implemented by tokens.Issuer.
type TokenVerifier interface {
	VerifyUnsubscribe(token string) (string, error)
}

// Server encapsulates the API's dependencies for injection during testing.
type Server struct {
	Pushers  PusherRemover
	Verifier TokenVerifier
	Logger   types.Logger

	router *chi.Mux
}

// NewServer wires the router and routes. It fails fast on missing
// dependencies.
func NewServer(pushers PusherRemover, verifier TokenVerifier, logger types.Logger) (*Server, error) {
	if pushers == nil {
		return nil, fmt.Errorf("pusher remover must not be nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("token verifier must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Pushers:  pushers,
		Verifier: verifier,
		Logger:   logger,
		router:   chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	// Both verbs: email clients follow the link with GET, API clients POST.
	s.router.Get("/pushers/remove", s.handleRemovePusher)
	s.router.Post("/pushers/remove", s.handleRemovePusher)

	return s, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}
