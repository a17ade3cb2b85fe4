package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/messaging-service/config"
	"github.com/cwrk-planet/messaging-service/internal/auth"
	"github.com/cwrk-planet/messaging-service/internal/metrics"
	"github.com/cwrk-planet/messaging-service/internal/presence"
	"github.com/cwrk-planet/messaging-service/internal/service"
	"github.com/cwrk-planet/messaging-service/internal/tracing"
	grpcx "github.com/cwrk-planet/messaging-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/messaging-service/internal/transport/http"
	"github.com/cwrk-planet/messaging-service/internal/transport/ws"
	"github.com/cwrk-planet/messaging-service/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting messaging-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- tracing ---
	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    cfg.Logging.Service,
		ServiceVersion: cfg.Logging.Version,
		Environment:    cfg.Logging.Env,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	// --- store ---
	st, err := openStores(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.close()

	// --- presence & gateway ---
	m := metrics.New()
	registry := presence.NewRegistry()
	hub := ws.NewHub()
	verifier := auth.NewJWTVerifier(cfg.Auth.AccessTokenSecret, cfg.Auth.Issuer, cfg.Auth.ClockSkew)
	wsServer := ws.NewServer(hub, registry, m, ws.Options{
		PingInterval:   cfg.WS.PingInterval,
		WriteTimeout:   cfg.WS.WriteTimeout,
		ReadLimit:      cfg.WS.ReadLimit,
		VerifyIdentity: cfg.WS.VerifyIdentity,
		Verifier:       verifier,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})

	// --- services ---
	chatSvc := service.NewChatService(st.messages, registry, wsServer, m)
	chatSvc.SetMaxMessageLength(cfg.Chat.MaxMessageLength)
	sidebarSvc := service.NewSidebarService(st.directory, st.follows, st.messages)

	// --- HTTP ---
	router := httpx.NewRouter(httpx.RouterDeps{
		Handler:        httpx.NewHandler(chatSvc, sidebarSvc, wsServer),
		Auth:           auth.NewGuard(verifier, st.directory, cfg.Auth.CookieName),
		WS:             wsServer.HandleWS,
		Metrics:        m.Handler(),
		Store:          st.pinger,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// --- gRPC ---
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
	)
	health := grpcx.NewHealthServer(st.pinger, 10*time.Second)
	grpcx.Register(grpcServer, health)
	reflection.Register(grpcServer)

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go health.Run(healthCtx)

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	stopHealth()
	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	// hijacked sockets are not tracked by http.Server
	if err := wsServer.Shutdown(ctxShutdown); err != nil {
		slog.Warn("ws shutdown", "err", err)
	}
	if err := shutdownTracing(ctxShutdown); err != nil {
		slog.Warn("tracing shutdown", "err", err)
	}
	slog.Info("stopped")
}
