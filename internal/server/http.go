package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	conf "github.com/webitel/inspection-exporter/config"
	apperrors "github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/registry"
	"github.com/webitel/inspection-exporter/registry/consul"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	Server   *http.Server
	listener net.Listener
	exitChan chan error
	registry registry.ServiceRegistrator
}

// BuildServer opens the listener and prepares the Consul registration.
// Without a Consul address the service is not registered anywhere.
func BuildServer(httpCfg *conf.HTTPConfig, consulCfg *conf.ConsulConfig, handler http.Handler, exitChan chan error) (*Server, error) {
	listener, err := net.Listen("tcp", httpCfg.Addr)
	if err != nil {
		return nil, apperrors.Internal(
			err.Error(),
			apperrors.WithID("server.build.listen.error"),
		)
	}

	var reg registry.ServiceRegistrator = registry.Noop{}
	if consulCfg != nil && consulCfg.Address != "" {
		reg, err = consul.NewConsulRegistry(consulCfg)
		if err != nil {
			_ = listener.Close()
			return nil, apperrors.Internal(
				err.Error(),
				apperrors.WithID("server.build.consul_registry.error"),
			)
		}
	}

	return &Server{
		Server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		exitChan: exitChan,
		registry: reg,
	}, nil
}

func (s *Server) Addr() string { return s.listener.Addr().String() }

// Start registers the service and serves until Stop.
func (s *Server) Start() {
	if err := s.registry.Register(); err != nil {
		s.exitChan <- err
		return
	}
	slog.Info("inspection_exporter.server.listening", slog.String("addr", s.Addr()))
	if err := s.Server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.exitChan <- apperrors.Internal(
			err.Error(),
			apperrors.WithID("server.start.serve.error"),
		)
	}
}

// Stop deregisters the service and drains open requests.
func (s *Server) Stop() {
	if err := s.registry.Deregister(); err != nil {
		slog.Error("inspection_exporter.server.deregister_failed", slog.String("error", err.Error()))
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Server.Shutdown(ctx); err != nil {
		slog.Error("inspection_exporter.server.shutdown_failed", slog.String("error", err.Error()))
	}
}
