// Package main initializes and starts the capsule server, setting up
// configuration, logging, the database, attachment storage, letter
// generation, handlers and TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/chronos/internal/attachments"
	"github.com/atinyakov/chronos/internal/certgen"
	"github.com/atinyakov/chronos/internal/config"
	"github.com/atinyakov/chronos/internal/db"
	"github.com/atinyakov/chronos/internal/feed"
	"github.com/atinyakov/chronos/internal/letter"
	"github.com/atinyakov/chronos/internal/logger"
	"github.com/atinyakov/chronos/internal/repository"
	"github.com/atinyakov/chronos/internal/server/handler/http"
	"github.com/atinyakov/chronos/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Purge soft-deleted capsules in the background.
	db.StartSoftDeleteCleaner(ctx, postgresDB,
		options.CleanInterval.Duration,
		options.Retention.Duration,
		zapLogger,
	)

	// Attachment storage.
	s3Client, err := attachments.NewS3Client(ctx, options.S3Region, options.S3Endpoint)
	if err != nil {
		zapLogger.Fatal("cannot init attachment storage", zap.Error(err))
	}
	publicURL := cmp.Or(options.S3PublicURL,
		attachments.PublicBaseURL(options.S3Bucket, options.S3Region, options.S3Endpoint))
	store := attachments.NewS3Store(s3Client, options.S3Bucket, publicURL)

	// Business logic.
	capsuleRepo := repository.NewPostgresCapsuleRepository(postgresDB)
	capsuleService := service.NewCapsuleService(capsuleRepo, store, feed.NewHub(), zapLogger,
		service.WithUploadTimeout(options.UploadTimeout.Duration))

	// Registration issues owner certificates and needs the CA key.
	var issuer service.CertIssuer
	if options.TLSCA != "" && options.TLSCAKey != "" {
		ca, err := certgen.LoadAuthority(options.TLSCA, options.TLSCAKey)
		if err != nil {
			zapLogger.Fatal("cannot load certificate authority", zap.Error(err))
		}
		issuer = ca
	} else {
		zapLogger.Warn("CA key not configured, registration disabled")
	}
	userService := service.NewUserService(repository.NewPostgresUserRepository(postgresDB), issuer, zapLogger)

	// Letter generation is optional.
	letters := &http.LetterHandler{Log: zapLogger}
	if options.GeminiAPIKey != "" {
		gen, err := letter.NewGeminiGenerator(ctx, options.GeminiAPIKey, options.GeminiModel, options.GeminiRPS, zapLogger)
		if err != nil {
			zapLogger.Error("letter generation disabled", zap.Error(err))
		} else {
			letters.Generator = gen
		}
	} else {
		zapLogger.Warn("GEMINI_API_KEY not set, letter generation disabled")
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(
		&http.CapsuleHandler{CapsuleService: capsuleService, Log: zapLogger},
		letters,
		&http.UserHandler{UserService: userService, Log: zapLogger},
		&http.HealthHandler{GeneratorAvailable: letters.Generator != nil},
		http.RouterOptions{
			AllowedOrigin: options.AllowedOrigin,
			RateLimit:     options.RateLimit,
			RateWindow:    options.RateWindow.Duration,
			TrustProxy:    options.TrustProxy,
		},
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if options.TLSCert != "" {
		tlsConfig, err := serverTLS(options.TLSCert, options.TLSKey, options.TLSCA)
		if err != nil {
			zapLogger.Fatal("failed to configure TLS", zap.Error(err))
		}
		server.TLSConfig = tlsConfig
	}

	errCh := make(chan error, 1)
	go func() {
		if server.TLSConfig != nil {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
			errCh <- server.ListenAndServeTLS("", "")
			return
		}
		zapLogger.Warn("no TLS certificate configured, owner endpoints will reject every request")
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	zapLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}

	// Let pending uploads and status writes finish.
	done := make(chan struct{})
	go func() {
		capsuleService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		zapLogger.Warn("background tasks still running at exit")
	}
}

// serverTLS loads the server keypair and the CA used to verify owner
// client certificates.
func serverTLS(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server TLS cert/key: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if caFile == "" {
		return cfg, nil
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
		return nil, errors.New("failed to append CA cert to pool")
	}
	// Public endpoints are reachable without a certificate; TrackedOwnerAuth
	// guards the rest.
	cfg.ClientAuth = tls.VerifyClientCertIfGiven
	cfg.ClientCAs = caCertPool
	return cfg, nil
}
