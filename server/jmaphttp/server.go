// Package jmaphttp serves the JMAP draft method calls over HTTP.
package jmaphttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/larkmail/lark/logger"
)

// accountHeader carries the account a request acts on. Session and
// authentication mechanics live in front of this server.
const accountHeader = "X-Account-Id"

// Server is the JMAP HTTP endpoint.
type Server struct {
	addr           string
	defaultAccount string
	handler        *Handler
	server         *http.Server
	tls            bool
	tlsCertFile    string
	tlsKeyFile     string
}

// ServerOptions holds configuration options for the JMAP HTTP server.
type ServerOptions struct {
	Addr           string
	DefaultAccount string
	TLS            bool
	TLSCertFile    string
	TLSKeyFile     string
}

// New creates a new JMAP HTTP server.
func New(handler *Handler, options ServerOptions) (*Server, error) {
	if options.TLS {
		if options.TLSCertFile == "" || options.TLSKeyFile == "" {
			return nil, fmt.Errorf("TLS certificate and key files are required when TLS is enabled")
		}
	}
	return &Server{
		addr:           options.Addr,
		defaultAccount: options.DefaultAccount,
		handler:        handler,
		tls:            options.TLS,
		tlsCertFile:    options.TLSCertFile,
		tlsKeyFile:     options.TLSKeyFile,
	}, nil
}

// Start runs the server until ctx is cancelled. Startup and serve failures
// are reported on errChan.
func Start(ctx context.Context, handler *Handler, options ServerOptions, errChan chan error) {
	server, err := New(handler, options)
	if err != nil {
		errChan <- fmt.Errorf("failed to create JMAP server: %w", err)
		return
	}

	protocol := "HTTP"
	if options.TLS {
		protocol = "HTTPS"
	}
	logger.Info("starting JMAP server", "protocol", protocol, "addr", options.Addr)
	if err := server.start(ctx); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		errChan <- fmt.Errorf("JMAP server failed: %w", err)
	}
}

func (s *Server) start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down JMAP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down JMAP server", "error", err)
		}
	}()

	if s.tls {
		return s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}
	return s.server.ListenAndServe()
}

func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/jmap", s.handleJMAP).Methods(http.MethodPost)
	return router
}

func (s *Server) accountID(r *http.Request) string {
	if account := r.Header.Get(accountHeader); account != "" {
		return account
	}
	return s.defaultAccount
}

// handleJMAP decodes a batch of method calls, runs each in order, and writes
// the correlated response triples.
func (s *Server) handleJMAP(w http.ResponseWriter, r *http.Request) {
	accountID := s.accountID(r)
	if accountID == "" {
		http.Error(w, "no account", http.StatusBadRequest)
		return
	}

	var calls []methodCall
	if err := json.NewDecoder(r.Body).Decode(&calls); err != nil {
		http.Error(w, fmt.Sprintf("malformed request: %v", err), http.StatusBadRequest)
		return
	}

	responses := make([]methodResponse, 0, len(calls))
	for i := range calls {
		responses = append(responses, s.handler.Dispatch(r.Context(), accountID, &calls[i]))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(responses); err != nil {
		logger.Error("failed to write JMAP response", "error", err)
	}
}
