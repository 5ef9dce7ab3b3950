package usermanagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"google.golang.org/grpc"

	"github.com/magabrotheeeer/user-management/internal/cache"
	"github.com/magabrotheeeer/user-management/internal/config"
	grpcserver "github.com/magabrotheeeer/user-management/internal/grpc/server"
	healthhandler "github.com/magabrotheeeer/user-management/internal/http/handlers/health"
	"github.com/magabrotheeeer/user-management/internal/http/links"
	"github.com/magabrotheeeer/user-management/internal/http/middlewarectx"
	"github.com/magabrotheeeer/user-management/internal/lib/jwt"
	"github.com/magabrotheeeer/user-management/internal/lib/password"
	"github.com/magabrotheeeer/user-management/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/user-management/internal/lib/sealer"
	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/lib/smtp"
	"github.com/magabrotheeeer/user-management/internal/metrics"
	"github.com/magabrotheeeer/user-management/internal/migrations"
	authservice "github.com/magabrotheeeer/user-management/internal/services/auth"
	userservice "github.com/magabrotheeeer/user-management/internal/services/user"
	"github.com/magabrotheeeer/user-management/internal/storage/repository"
)

// App HTTP API с сервером проверки здоровья gRPC.
type App struct {
	server     *http.Server
	grpcServer *grpc.Server
	healthSrv  *grpcserver.HealthServer
	listener   net.Listener
	logger     *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	conn       *amqp.Connection
	ch         *amqp.Channel
}

// New подключает хранилища, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.JWTSecretKey == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		db.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		db.Close()
		_ = cacheRedis.Close()
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.MailExchange, rabbitmq.GetMailQueues())
	if err != nil {
		_ = conn.Close()
		db.Close()
		_ = cacheRedis.Close()
		return nil, err
	}

	seal, err := sealer.New(cfg.JWTSecretKey)
	if err != nil {
		closeAll(logger, db, cacheRedis, conn, ch)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, jwt.TTL{
		Session:      cfg.TokenTTL,
		Verification: cfg.VerificationTTL,
		EmailChange:  cfg.EmailChangeTTL,
		Reset:        cfg.ResetTTL,
	})
	hasher := password.NewHasher(cfg.BcryptCost)
	mailer := smtp.NewMailer(smtp.NewTransport(cfg.SMTP, logger), logger)

	authService := authservice.NewAuthService(logger, db, tokens, hasher, seal, mailer, cacheRedis, authservice.Options{
		PublicURL:       cfg.PublicURL,
		VerificationTTL: cfg.VerificationTTL,
		EmailChangeTTL:  cfg.EmailChangeTTL,
		ResetTTL:        cfg.ResetTTL,
		LegacyReset:     cfg.LegacyResetFlow,
	}).WithEvents(m)

	userService := userservice.NewUserService(db, cacheRedis, hasher, authService,
		rabbitmq.NewPublisher(ch, rabbitmq.MailExchange), cfg.UserCacheTTL, logger)

	if err := userService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		closeAll(logger, db, cacheRedis, conn, ch)
		return nil, fmt.Errorf("failed to create admin account: %w", err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Log:        logger,
		Auth:       authService,
		Users:      userService,
		Guard:      middlewarectx.NewGuard(logger, tokens, userService, db),
		Links:      links.New(cfg.PublicURL),
		Metrics:    m,
		Gatherer:   reg,
		Health:     map[string]healthhandler.Pinger{"postgres": db, "redis": cacheRedis},
		SessionTTL: cfg.TokenTTL,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	lis, err := net.Listen("tcp", cfg.GRPCHealthAddress)
	if err != nil {
		closeAll(logger, db, cacheRedis, conn, ch)
		return nil, err
	}
	grpcServer := grpc.NewServer()
	healthSrv := grpcserver.NewHealthServer(map[string]grpcserver.Pinger{"postgres": db, "redis": cacheRedis},
		cfg.HealthProbeInterval, logger)
	healthSrv.Register(grpcServer)

	return &App{
		server:     srv,
		grpcServer: grpcServer,
		healthSrv:  healthSrv,
		listener:   lis,
		logger:     logger,
		db:         db,
		cache:      cacheRedis,
		conn:       conn,
		ch:         ch,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем останавливает серверы.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()
	go func() {
		a.logger.Info("gRPC health service listening on", slog.String("address", a.listener.Addr().String()))
		errCh <- a.grpcServer.Serve(a.listener)
	}()
	probeCtx, stopProbe := context.WithCancel(ctx)
	probeDone := make(chan struct{})
	go func() {
		a.healthSrv.Run(probeCtx)
		close(probeDone)
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	stopProbe()
	<-probeDone
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.logger.Info("shutting down HTTP server gracefully")
	if err := a.server.Shutdown(timeoutCtx); err != nil && runErr == nil {
		runErr = err
	}
	a.grpcServer.GracefulStop()
	closeAll(a.logger, a.db, a.cache, a.conn, a.ch)
	return runErr
}

func closeAll(logger *slog.Logger, db *repository.Storage, c *cache.Cache, conn *amqp.Connection, ch *amqp.Channel) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if c != nil {
		if err := c.Close(); err != nil {
			logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if db != nil {
		db.Close()
	}
}
