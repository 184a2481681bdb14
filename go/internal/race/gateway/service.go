package gateway

import (
	"context"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/race/registry"
)

// Service is the race gateway: it owns the room registry and the WebSocket
// connections that feed it.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	registry          *registry.Registry
}

// Config holds configuration for the race gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Policy           registry.Policy
}

// DefaultConfig returns default configuration for the race gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Policy:           registry.PolicyPermissive,
	}
}

// NewService wires a fresh registry to a connection manager.
func NewService(config Config, auth Authenticator, opts ...registry.Option) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	opts = append([]registry.Option{registry.WithPolicy(config.Policy)}, opts...)
	reg := registry.New(connectionManager, opts...)
	connectionManager.Attach(reg)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, auth),
		registry:          reg,
	}
}

// Start blocks until ctx is cancelled and then closes every connection.
func (s *Service) Start(ctx context.Context) error {
	log.Info().
		Str("policy", s.registry.Policy().String()).
		Msg("starting race gateway service")

	<-ctx.Done()

	log.Info().Msg("race gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.connectionManager.CloseAll(ctx)

	log.Info().Msg("race gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(router *mux.Router) {
	s.wsHandler.RegisterRoutes(router)
	log.Info().Msg("race gateway routes registered")
}

// Registry exposes the room registry, mainly for stats and tests.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
