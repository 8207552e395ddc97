package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/identitykit/auth/auth"
	"github.com/identitykit/auth/auth/authn"
	"github.com/identitykit/auth/auth/validate"
	"github.com/identitykit/auth/config"
)

func main() {
	var (
		configFile string
		envFile    string
		addr       string
		debug      bool

		cert    string
		certKey string
	)

	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file")
	flag.StringVar(&envFile, "env", ".env", "Environment file loaded before the configuration (optional)")
	flag.StringVar(&addr, "addr", "localhost:8080", "Address to listen on")
	flag.BoolVar(&debug, "debug", false, "Debug mode")

	flag.StringVar(&cert, "tlscert", "", "Certificate file for TLS")
	flag.StringVar(&certKey, "tlskey", "", "Certificate key for TLS")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	if debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
	}
	defer logger.Sync()

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Sugar().Fatalf("Error loading env file %s: %v", envFile, err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Sugar().Fatalf("Error loading configuration: %v", err)
	}

	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Sugar().Fatalf("Error initializing sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	hasher, err := cfg.Hasher.Config.CreateHasher()
	if err != nil {
		logger.Sugar().Fatalf("Error creating password hasher: %v", err)
	}

	tokens, err := cfg.TokenCodec.Config.CreateTokenCodec(clock)
	if err != nil {
		logger.Sugar().Fatalf("Error creating token codec: %v", err)
	}

	stores, err := cfg.Store.Config.CreateStores(ctx)
	if err != nil {
		logger.Sugar().Fatalf("Error creating %s store: %v", cfg.Store.Type, err)
	}
	defer stores.Close()

	authenticator, err := authn.NewStoreAuthenticator(stores.Users, hasher)
	if err != nil {
		logger.Sugar().Fatalf("Error creating authenticator: %v", err)
	}

	accessTokenLifetime, refreshTokenLifetime := cfg.TokenCodec.Config.Lifetimes()

	service := auth.Service{
		Authenticator:        authenticator,
		Users:                stores.Users,
		Roles:                stores.Roles,
		Validator:            validate.NewRegistrationValidator(),
		Hasher:               hasher,
		Tokens:               tokens,
		Clock:                clock,
		AccessTokenLifetime:  accessTokenLifetime,
		RefreshTokenLifetime: refreshTokenLifetime,
		DefaultRole:          cfg.Registration.DefaultRole,
		StrictDefaultRole:    cfg.Registration.StrictDefaultRole,
		StoreTimeout:         cfg.StoreTimeout,
		Logger:               logger,
	}

	server := auth.Server{
		Service: service,
		Clock:   clock,
		Logger:  logger,
	}

	router := mux.NewRouter()
	router.Use(auth.RequestLogging(logger), server.Recover)
	router.Path("/healthz").Methods("GET").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	server.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Sugar().Infof("Error shutting down: %v", err)
		}
	}()

	logger.Sugar().Infof("Listening on %s", addr)

	if cert == "" {
		err = httpServer.ListenAndServe()
	} else if certKey == "" {
		logger.Sugar().Fatalf("Must provide certficate (-tlscert) and key (-tlskey)")
	} else {
		err = httpServer.ListenAndServeTLS(cert, certKey)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Sugar().Infof("Error serving: %v", err)
	}
}
