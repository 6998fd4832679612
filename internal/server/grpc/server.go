package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/linkvault/internal/server/services"
	"google.golang.org/grpc"
)

type userSvc interface {
	Register(ctx context.Context, username, password string) (*models.User, *models.QuotaAccount, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type objectSvc interface {
	List(ctx context.Context, ownerID string, filter objects.ListFilter) ([]*models.StoredObject, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type linkSvc interface {
	Issue(ctx context.Context, objectID, ownerID string, opts services.IssueOptions) (*models.AccessLink, error)
	Revoke(ctx context.Context, token, ownerID string) error
	List(ctx context.Context, ownerID string) ([]*models.AccessLink, error)
}

type ingestSvc interface {
	Ingest(ctx context.Context, ownerID, sourceURL string) (*models.StoredObject, error)
}

type quotaSvc interface {
	Account(ctx context.Context, ownerID string) (*models.QuotaAccount, error)
}

type paymentSvc interface {
	KeyID() string
	OpenPlanOrder(ctx context.Context, ownerID, planCode string) (*models.PaymentTransaction, error)
	Checkout(ctx context.Context, ownerID, orderID string) (*models.PaymentTransaction, error)
	History(ctx context.Context, ownerID string) ([]*models.PaymentTransaction, error)
}

// Services groups the collaborators the gRPC server dispatches to.
type Services struct {
	Users    userSvc
	Objects  objectSvc
	Links    linkSvc
	Ingest   ingestSvc
	Quota    quotaSvc
	Payments paymentSvc
}

type GRPCServer struct {
	address       string
	publicBaseURL string
	users         userSvc
	objects       objectSvc
	links         linkSvc
	ingest        ingestSvc
	quota         quotaSvc
	payments      paymentSvc
	logger        logging.Logger
	jwtSecret     []byte
}

func NewGRPCServer(a, publicBaseURL string, l logging.Logger, svc Services, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:       a,
		publicBaseURL: publicBaseURL,
		users:         svc.Users,
		objects:       svc.Objects,
		links:         svc.Links,
		ingest:        svc.Ingest,
		quota:         svc.Quota,
		payments:      svc.Payments,
		logger:        l.With("module", "grpc_server"),
		jwtSecret:     []byte(secretKey),
	}
}

// newGRPC builds the grpc.Server with interceptors and the service
// registered.
func (s *GRPCServer) newGRPC() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&serviceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newGRPC()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
