package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/linkvault/internal/api"
	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/linkvault/internal/server/services"
	units "github.com/docker/go-units"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// SelfCopyNotice is returned with the existing object when a user ingests
// a link to their own file.
const SelfCopyNotice = "you already own this file"

func reply(msg any) (*structpb.Struct, error) {
	out, err := api.Encode(msg)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func decode(req *structpb.Struct, msg any) error {
	if err := api.Decode(req, msg); err != nil {
		return status.Error(codes.InvalidArgument, "malformed request")
	}
	return nil
}

func toObject(o *models.StoredObject) api.Object {
	return api.Object{
		ID:        o.ID,
		Name:      o.Name,
		Size:      o.Size,
		SizeHuman: units.HumanSize(float64(o.Size)),
		CreatedAt: o.CreatedAt.UTC(),
		ExpiresAt: o.ExpiresAt.UTC(),
	}
}

func (s *GRPCServer) shareURL(token string) string {
	return strings.TrimRight(s.publicBaseURL, "/") + "/s/" + token + "/"
}

func (s *GRPCServer) toLink(l *models.AccessLink) api.Link {
	return api.Link{
		Token:     l.Token,
		ObjectID:  l.ObjectID,
		Kind:      string(l.Kind),
		Active:    l.Active,
		ExpiresAt: l.ExpiresAt.UTC(),
		URL:       s.shareURL(l.Token),
	}
}

func toPayment(p *models.PaymentTransaction) api.Payment {
	return api.Payment{
		OrderID:         p.OrderID,
		PaymentID:       p.PaymentID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		StorageIncrease: p.StorageIncrease,
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt.UTC(),
	}
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	return reply(api.PingResponse{Status: "OK"})

}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	s.logger.Info(ctx, "Registration request")

	var in api.Credentials
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	user, acct, err := s.users.Register(ctx, in.Username, in.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "username", user.UserName)
	return reply(api.RegisterResponse{UserID: user.ID, LimitBytes: acct.LimitBytes})

}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	var in api.Credentials
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	tokens, err := s.users.Login(ctx, in.Username, in.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return reply(api.TokenPair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})

}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	var in api.RefreshTokenRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	tokens, err := s.users.RefreshToken(ctx, in.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return reply(api.TokenPair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})

}

func (s *GRPCServer) ListObjects(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	var in api.ListObjectsRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	list, err := s.objects.List(ctx, owner, objects.ListFilter{Search: in.Search, Sort: in.Sort})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := api.ListObjectsResponse{Objects: make([]api.Object, 0, len(list))}
	for _, o := range list {
		out.Objects = append(out.Objects, toObject(o))
	}
	return reply(out)
}

func (s *GRPCServer) DeleteObject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	var in api.DeleteObjectRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	if err := s.objects.Delete(ctx, in.ID, owner); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return reply(api.Empty{})
}

func (s *GRPCServer) IssueLink(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	var in api.IssueLinkRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	link, err := s.links.Issue(ctx, in.ObjectID, owner, services.IssueOptions{
		Duration:   in.Duration,
		AccessCode: in.AccessCode,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return reply(s.toLink(link))
}

func (s *GRPCServer) RevokeLink(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	var in api.RevokeLinkRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	if err := s.links.Revoke(ctx, in.Token, owner); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return reply(api.Empty{})
}

func (s *GRPCServer) ListLinks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.links.List(ctx, owner)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := api.ListLinksResponse{Links: make([]api.Link, 0, len(list))}
	for _, l := range list {
		out.Links = append(out.Links, s.toLink(l))
	}
	return reply(out)
}

func (s *GRPCServer) Ingest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	var in api.IngestRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	obj, err := s.ingest.Ingest(ctx, owner, in.URL)
	if errors.Is(err, common.ErrSelfCopy) {
		return reply(api.IngestResponse{Object: toObject(obj), Notice: SelfCopyNotice})
	}
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return reply(api.IngestResponse{Object: toObject(obj)})
}

func (s *GRPCServer) GetQuota(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	acct, err := s.quota.Account(ctx, owner)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return reply(api.Quota{
		LimitBytes:     acct.LimitBytes,
		UsedBytes:      acct.UsedBytes,
		RemainingBytes: acct.Remaining(),
		LimitHuman:     units.BytesSize(float64(acct.LimitBytes)),
		UsedHuman:      units.BytesSize(float64(acct.UsedBytes)),
	})
}

func (s *GRPCServer) ListPlans(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	plans := services.SortedPlans()
	out := api.ListPlansResponse{Plans: make([]api.Plan, 0, len(plans))}
	for _, p := range plans {
		out.Plans = append(out.Plans, api.Plan{
			Code:            p.Code,
			StorageIncrease: p.StorageIncrease,
			StorageHuman:    units.BytesSize(float64(p.StorageIncrease)),
			Amount:          p.Amount,
		})
	}
	return reply(out)
}

func (s *GRPCServer) OpenOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	var in api.OpenOrderRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	txn, err := s.payments.OpenPlanOrder(ctx, owner, in.Plan)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := toPayment(txn)
	out.KeyID = s.payments.KeyID()
	return reply(out)
}

func (s *GRPCServer) SettleOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	var in api.SettleOrderRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	txn, err := s.payments.Checkout(ctx, owner, in.OrderID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return reply(toPayment(txn))
}

func (s *GRPCServer) ListPayments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.payments.History(ctx, owner)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := api.ListPaymentsResponse{Payments: make([]api.Payment, 0, len(list))}
	for _, p := range list {
		out.Payments = append(out.Payments, toPayment(p))
	}
	return reply(out)
}
