package http

// this is the entry point of the monitor's request handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/services/history"
	"github.com/mtzgroup/tcpb-go/internal/handlers"
	"github.com/mtzgroup/tcpb-go/internal/handlers/jobs"
	"github.com/mtzgroup/tcpb-go/internal/handlers/status"
)

// ServiceProvider carries what the monitor reads from. History, Metrics and
// Tokens may be nil: their routes or auth are then left out.
type ServiceProvider struct {
	Slot    status.SlotSource
	Peers   status.PeerSource
	History history.IHistoryService
	Metrics http.Handler
	Tokens  primary.JWTService
}

type Server struct {
	router          *mux.Router
	Address         string
	ServiceName     string
	ServiceProvider ServiceProvider
	logger          primary.Logger

	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
}

func NewServer(address string, serviceName string, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		Address:         address,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		logger:          logger,
		serveErr:        make(chan error, 1),
	}
}

func (s *Server) Init() error {
	if s.ServiceProvider.Slot == nil || s.ServiceProvider.Peers == nil {
		return errors.New("monitor needs a slot and a peer source")
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	api := r.NewRoute().Subrouter()
	if s.ServiceProvider.Tokens != nil {
		api.Use(handlers.New(s.ServiceProvider.Tokens, "", s.logger).JWTMiddleware)
	}
	status.NewHandler(s.ServiceProvider.Slot, s.ServiceProvider.Peers).RegisterRoutes(api)
	if s.ServiceProvider.History != nil {
		jobs.NewJobHandler(s.ServiceProvider.History, s.logger).RegisterRoutes(api)
	}
	if s.ServiceProvider.Metrics != nil {
		api.Handle("/metrics", s.ServiceProvider.Metrics).Methods("GET")
	}

	s.router = r
	return nil
}

// Handler returns the router built by Init
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the address and serves in the background. A bind failure is
// returned; later serve errors are logged and reported by Stop.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return errors.New("monitor not initialised")
	}
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		s.logger.Info("Monitor listening", "service", s.ServiceName, "addr", listener.Addr().String())
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Monitor error", "error", err)
			s.serveErr <- err
		}
		close(s.serveErr)
	}()
	return nil
}

// Addr returns the bound address once Start succeeded
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down monitor...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down monitor: %w", err)
	}
	return <-s.serveErr
}
