// Package server wires configuration, storage, services and transports into
// a runnable LinkVault server and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/blob"
	"github.com/dmitrijs2005/linkvault/internal/server/config"
	"github.com/dmitrijs2005/linkvault/internal/server/fetch"
	"github.com/dmitrijs2005/linkvault/internal/server/gateway"
	"github.com/dmitrijs2005/linkvault/internal/server/httpapi"
	"github.com/dmitrijs2005/linkvault/internal/server/metrics"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/linkvault/internal/server/services"
	"github.com/dmitrijs2005/linkvault/internal/timex"

	gs "github.com/dmitrijs2005/linkvault/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	clock    timex.Clock
	metrics  *metrics.Metrics
	users    *services.UserService
	objects  *services.ObjectService
	links    *services.LinkService
	ingest   *services.IngestService
	quota    *services.QuotaService
	payments *services.PaymentService
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		db.Close()
		return nil, err
	}

	gw, err := newGateway(c)
	if err != nil {
		db.Close()
		return nil, err
	}

	clock := timex.SystemClock{}
	mx := metrics.New()
	fetcher := fetch.NewHTTPFetcher(&http.Client{}, c.FetchTimeout)

	quota := services.NewQuotaService(db, rm, c.DefaultQuota, logger)
	users := services.NewUserService(db, rm, quota, clock, logger, c)
	objects := services.NewObjectService(db, rm, blobs, quota, clock, logger, mx)
	links := services.NewLinkService(db, rm, clock, logger, mx)
	ingest := services.NewIngestService(links, objects, fetcher, logger, mx)
	payments := services.NewPaymentService(db, rm, gw, quota, c.PaymentCurrency, logger, mx)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		clock:    clock,
		metrics:  mx,
		users:    users,
		objects:  objects,
		links:    links,
		ingest:   ingest,
		quota:    quota,
		payments: payments,
	}, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (blob.Store, error) {
	switch c.BlobBackend {
	case config.BlobBackendFS:
		return blob.NewFSStore(c.BlobDir)
	case config.BlobBackendS3:
		return blob.NewS3Store(ctx, blob.S3Config{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

func newGateway(c *config.Config) (gateway.Gateway, error) {
	switch c.PaymentGateway {
	case config.GatewaySandbox:
		return gateway.NewSandbox(c.PaymentKeyID, c.PaymentKeySecret), nil
	case config.GatewayRazorpay:
		return gateway.NewRazorpay(&http.Client{Timeout: 30 * time.Second}, c.PaymentKeyID, c.PaymentKeySecret), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", c.PaymentGateway)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.config.PublicBaseURL, app.logger, gs.Services{
		Users:    app.users,
		Objects:  app.objects,
		Links:    app.links,
		Ingest:   app.ingest,
		Quota:    app.quota,
		Payments: app.payments,
	}, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, httpapi.Services{
		Objects:  app.objects,
		Links:    app.links,
		Payments: app.payments,
	}, app.metrics, app.config.SecretKey, app.config.MaxUploadSize)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

type expiryPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type tokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// runReaper purges expired links and refresh tokens every interval until
// ctx is done.
func runReaper(ctx context.Context, interval time.Duration, clock timex.Clock, logger logging.Logger, links expiryPurger, tokens tokenPurger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := clock.Now()
			if _, err := links.PurgeExpired(ctx, now); err != nil {
				logger.Error(ctx, "link purge failed", "error", err)
			}
			if n, err := tokens.PurgeExpiredTokens(ctx, now); err != nil {
				logger.Error(ctx, "refresh token purge failed", "error", err)
			} else if n > 0 {
				logger.Info(ctx, "expired refresh tokens purged", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.LinkReaperInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runReaper(ctx, app.config.LinkReaperInterval, app.clock, app.logger, app.links, app.users)
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
