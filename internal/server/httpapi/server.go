// Package httpapi is the public HTTP boundary: uploads, share links,
// payment callbacks, metrics and health.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/metrics"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/services"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type objectSvc interface {
	Create(ctx context.Context, ownerID string, name string, r io.Reader) (*models.StoredObject, error)
	Open(ctx context.Context, obj *models.StoredObject) (io.ReadCloser, error)
}

type linkSvc interface {
	Resolve(ctx context.Context, token string) (*services.Resolution, error)
	Authorize(link *models.AccessLink, code string) error
}

type paymentSvc interface {
	Confirm(ctx context.Context, cb services.Callback) (*models.PaymentTransaction, error)
}

// Services groups the collaborators behind the HTTP routes.
type Services struct {
	Objects  objectSvc
	Links    linkSvc
	Payments paymentSvc
}

type Server struct {
	address   string
	echo      *echo.Echo
	objects   objectSvc
	links     linkSvc
	payments  paymentSvc
	metrics   *metrics.Metrics
	logger    logging.Logger
	jwtSecret []byte
	maxUpload int64
}

// requestValidator adapts validator/v10 to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func (r *requestValidator) Validate(i any) error {
	return r.v.Struct(i)
}

// NewServer wires the routes. maxUpload caps the upload request body in
// bytes; zero leaves it unbounded.
func NewServer(address string, l logging.Logger, svc Services, mx *metrics.Metrics, secretKey string, maxUpload int64) *Server {
	s := &Server{
		address:   address,
		objects:   svc.Objects,
		links:     svc.Links,
		payments:  svc.Payments,
		metrics:   mx,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
		maxUpload: maxUpload,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New()}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(s.observe)

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(mx.Handler()))

	uploadMW := []echo.MiddlewareFunc{s.requireBearer}
	if maxUpload > 0 {
		uploadMW = append(uploadMW, middleware.BodyLimit(strconv.FormatInt(maxUpload, 10)))
	}
	e.POST("/api/files", s.upload, uploadMW...)
	e.POST("/api/payments/callback", s.paymentCallback)

	e.GET("/s/:token", s.linkInfo)
	e.GET("/s/:token/now", s.download)
	e.GET("/download/:token", s.download)

	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve handles requests on listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	s.echo.Listener = listen

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
