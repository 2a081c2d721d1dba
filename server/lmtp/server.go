// Package lmtp accepts inbound mail over LMTP and hands it to the delivery
// pipeline.
package lmtp

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"

	"github.com/emersion/go-smtp"

	"github.com/larkmail/lark/logger"
	"github.com/larkmail/lark/pkg/metrics"
	"github.com/larkmail/lark/server/delivery"
)

// AccountResolver maps an RCPT TO address to the account that owns it.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, address string) (string, error)
}

// Backend is the LMTP server backend.
type Backend struct {
	name     string
	hostname string
	addr     string
	resolver AccountResolver
	pipeline *delivery.Context
	server   *smtp.Server
	appCtx   context.Context

	activeConnections atomic.Int64
}

// BackendOptions holds configuration options for the LMTP server.
type BackendOptions struct {
	Name           string
	Hostname       string
	Addr           string
	MaxMessageSize int64
	Debug          bool
}

// New creates a new LMTP server backend.
func New(appCtx context.Context, resolver AccountResolver, pipeline *delivery.Context, options BackendOptions) (*Backend, error) {
	if options.Addr == "" {
		return nil, fmt.Errorf("LMTP listen address is required")
	}
	b := &Backend{
		name:     options.Name,
		hostname: options.Hostname,
		addr:     options.Addr,
		resolver: resolver,
		pipeline: pipeline,
		appCtx:   appCtx,
	}

	s := smtp.NewServer(b)
	s.Addr = options.Addr
	s.Domain = options.Hostname
	s.LMTP = true
	s.Network = "tcp"
	if options.MaxMessageSize > 0 {
		s.MaxMessageBytes = options.MaxMessageSize
	}
	if options.Debug {
		s.Debug = os.Stdout
	}
	b.server = s

	return b, nil
}

// NewSession starts a session for one accepted connection.
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	metrics.LMTPConnectionsTotal.Inc()
	b.activeConnections.Add(1)
	logger.Debug("LMTP: new session",
		"name", b.name, "remote", c.Conn().RemoteAddr().String(),
		"active", b.activeConnections.Load())
	return &Session{backend: b}, nil
}

// Start listens and serves until the backend is closed. Failures are
// reported on errChan.
func (b *Backend) Start(errChan chan error) {
	listener, err := net.Listen("tcp", b.addr)
	if err != nil {
		errChan <- fmt.Errorf("failed to create LMTP listener: %w", err)
		return
	}
	defer listener.Close()

	logger.Info("LMTP server listening", "name", b.name, "addr", b.addr)
	if err := b.server.Serve(listener); err != nil {
		if b.appCtx.Err() != nil {
			logger.Info("LMTP server stopped gracefully", "name", b.name)
			return
		}
		errChan <- fmt.Errorf("LMTP server error: %w", err)
	}
}

// Close shuts the server down.
func (b *Backend) Close() error {
	if b.server != nil {
		return b.server.Close()
	}
	return nil
}

// GetActiveConnections returns the current number of active connections.
func (b *Backend) GetActiveConnections() int64 {
	return b.activeConnections.Load()
}
