// Package server orchestrates all components: NATS client, optional DB, the
// Nexus dispatch engine, the wire binding and HTTP health.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/nexus-handler/internal/config"
	"github.com/morezero/nexus-handler/internal/greeter"
	"github.com/morezero/nexus-handler/pkg/commsutil"
	"github.com/morezero/nexus-handler/pkg/db"
	"github.com/morezero/nexus-handler/pkg/dispatcher"
	"github.com/morezero/nexus-handler/pkg/events"
	"github.com/morezero/nexus-handler/pkg/handler"
	"github.com/morezero/nexus-handler/pkg/middleware"
	"github.com/morezero/nexus-handler/pkg/nexus"
	"github.com/morezero/nexus-handler/pkg/serializer"
)

const logPrefix = "server:server"

// shutdownTimeout bounds draining in-flight requests on shutdown.
const shutdownTimeout = 30 * time.Second

// Server is the nexus-server orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	greeter    *greeter.Service
	services   []*nexus.ServiceDefinition
	sub        *dispatcher.Subscriber
	rpc        http.Handler
	httpServer *http.Server
	httpAddr   string
	checks     []healthCheck
	started    time.Time

	stopJanitor context.CancelFunc
	janitorDone sync.WaitGroup
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})))

	slog.Info(fmt.Sprintf("%s - Starting nexus-server", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := Start(ctx, cfg)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return s.Shutdown(shutdownCtx)
}

// Start connects every dependency and begins serving Nexus requests and HTTP.
// On error everything opened so far is closed again.
func Start(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg, started: time.Now().UTC()}
	ready := false
	defer func() {
		if !ready {
			s.close()
		}
	}()

	// Step 1: Connect to NATS
	var err error
	s.nc, err = commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.checks = append(s.checks, healthCheck{name: "comms", check: func(context.Context) error {
		if !s.nc.IsConnected() {
			return fmt.Errorf("status %s", s.nc.Status())
		}
		return nil
	}})

	// Step 2: Operation store, Postgres when configured
	store, err := s.openStore(ctx)
	if err != nil {
		return nil, err
	}
	s.greeter = greeter.New(store, greeter.Options{CompletionDelay: cfg.CompletionDelay})

	// Step 3: Build the engine
	engine, err := s.buildEngine()
	if err != nil {
		return nil, err
	}

	// Step 4: Subscribe the wire bindings
	disp := dispatcher.NewDispatcher(engine)
	s.rpc, err = dispatcher.NewRPCHandler(disp, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	s.sub, err = dispatcher.Subscribe(ctx, s.nc, cfg.NexusSubject, disp, dispatcher.SubscribeOpts{
		RequestTimeout: cfg.RequestTimeout,
		MaxInFlight:    cfg.MaxInFlight,
	})
	if err != nil {
		return nil, err
	}

	// Step 5: Prune completed operations in the background
	s.startJanitor(ctx)

	// Step 6: Start HTTP health server
	if err := s.startHTTP(); err != nil {
		return nil, err
	}

	ready = true
	slog.Info(fmt.Sprintf("%s - Nexus server is ready on %s", logPrefix, cfg.NexusSubject))
	return s, nil
}

func (s *Server) openStore(ctx context.Context) (greeter.Store, error) {
	if !s.cfg.UseDatabase() {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, using in-memory operation store", logPrefix))
		return greeter.NewMemoryStore(), nil
	}

	if s.cfg.EnsureDatabase {
		if err := db.EnsureDatabase(ctx, s.cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("%s - failed to ensure database: %w", logPrefix, err)
		}
	}
	pool, err := db.NewPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool
	s.checks = append(s.checks, healthCheck{name: "database", check: pool.Ping})

	if s.cfg.RunMigrations {
		migrationSQL, err := db.LoadMigrationFiles(s.cfg.MigrationPath)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
			return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	return db.NewRepository(pool), nil
}

func (s *Server) buildEngine() (*handler.Handler, error) {
	inst, err := s.greeter.Instance()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to bind greeting service: %w", logPrefix, err)
	}
	s.services = append(s.services, inst.Definition)

	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if s.cfg.PublishEvents {
		publisher = events.NewCommsPublisher(s.nc, &events.CommsPublisherOpts{BaseSubject: s.cfg.EventSubject})
	}

	engine, err := handler.NewHandler(
		[]*handler.ServiceHandlerInstance{inst},
		serializer.Default(),
		middleware.Logging(),
		middleware.Events(publisher),
		middleware.WaitCeiling(s.cfg.FetchResultMaxWait),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create engine: %w", logPrefix, err)
	}
	return engine, nil
}

func (s *Server) startJanitor(ctx context.Context) {
	interval := s.cfg.OperationRetention / 4
	if interval < time.Second {
		interval = time.Second
	}
	janitorCtx, cancel := context.WithCancel(ctx)
	s.stopJanitor = cancel
	s.janitorDone.Add(1)
	go func() {
		defer s.janitorDone.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-janitorCtx.Done():
				return
			case <-ticker.C:
				if _, err := s.greeter.Prune(janitorCtx, s.cfg.OperationRetention); err != nil && !errors.Is(err, context.Canceled) {
					slog.Warn(fmt.Sprintf("%s - prune completed operations: %v", logPrefix, err))
				}
			}
		}
	}()
}

func (s *Server) startHTTP() error {
	addr := s.cfg.HTTPAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", s.cfg.HTTPPort)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, addr, err)
	}
	s.httpAddr = ln.Addr().String()
	s.httpServer = &http.Server{Addr: s.httpAddr, Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, s.httpAddr))
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()
	return nil
}

// HTTPAddr returns the address the HTTP server listens on.
func (s *Server) HTTPAddr() string {
	return s.httpAddr
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx is
// done, then releases every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.sub != nil {
		if err := s.sub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s - HTTP shutdown: %w", logPrefix, err))
		}
	}
	s.close()
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return errors.Join(errs...)
}

func (s *Server) close() {
	if s.stopJanitor != nil {
		s.stopJanitor()
		s.janitorDone.Wait()
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
