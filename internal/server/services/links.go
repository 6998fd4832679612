package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/cryptox"
	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/metrics"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/linkvault/internal/timex"
	"github.com/google/uuid"
)

// DefaultDurationCode applies to any code missing from DurationCodes.
const DefaultDurationCode = "1h"

// DurationCodes maps the link lifetimes offered to owners.
var DurationCodes = map[string]time.Duration{
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"48h": 48 * time.Hour,
	"2d":  2 * 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// LinkDuration resolves a duration code. Unknown codes get one hour.
func LinkDuration(code string) time.Duration {
	if d, ok := DurationCodes[code]; ok {
		return d
	}
	return DurationCodes[DefaultDurationCode]
}

const maxTokenAttempts = 5

// newLinkToken is a seam for tests. uuid v4 draws from crypto/rand.
var newLinkToken = uuid.NewString

// IssueOptions configures a new link. A non-empty AccessCode makes the link
// protected.
type IssueOptions struct {
	Duration   string
	AccessCode string
}

// Resolution is the outcome of resolving a token. Active is false once the
// deadline has passed or the link was revoked.
type Resolution struct {
	Link   *models.AccessLink
	Object *models.StoredObject
	Active bool
}

// LinkService is the access link registry.
type LinkService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       timex.Clock
	logger      logging.Logger
	metrics     *metrics.Metrics
}

func NewLinkService(db *sql.DB, m repomanager.RepositoryManager, clock timex.Clock, logger logging.Logger, mx *metrics.Metrics) *LinkService {
	return &LinkService{
		db:          db,
		repomanager: m,
		clock:       clock,
		logger:      logger.With("module", "links"),
		metrics:     mx,
	}
}

// Issue creates a link on one of ownerID's objects. Objects that are missing
// or belong to someone else both yield common.ErrorNotFound.
func (s *LinkService) Issue(ctx context.Context, objectID, ownerID string, opts IssueOptions) (*models.AccessLink, error) {
	if err := checkID(objectID); err != nil {
		return nil, err
	}
	obj, err := s.repomanager.Objects(s.db).GetByID(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if !obj.OwnedBy(ownerID) {
		return nil, common.ErrorNotFound
	}

	now := s.clock.Now()
	link := &models.AccessLink{
		ObjectID:  obj.ID,
		Kind:      models.LinkPublic,
		ExpiresAt: now.Add(LinkDuration(opts.Duration)),
		Active:    true,
		CreatedAt: now,
	}
	if opts.AccessCode != "" {
		salt, hash, err := cryptox.HashSecret([]byte(opts.AccessCode))
		if err != nil {
			return nil, common.ErrorInternal
		}
		link.Kind = models.LinkProtected
		link.CodeSalt, link.CodeHash = salt, hash
	}

	repo := s.repomanager.Links(s.db)
	for attempt := 1; ; attempt++ {
		link.Token = newLinkToken()
		err = repo.Create(ctx, link)
		if err == nil {
			break
		}
		if !errors.Is(err, common.ErrorAlreadyExists) || attempt == maxTokenAttempts {
			return nil, fmt.Errorf("error creating link: %w", err)
		}
		s.logger.Warn(ctx, "link token collision, regenerating", "attempt", attempt)
	}

	s.metrics.LinkIssued(string(link.Kind))
	s.logger.Info(ctx, "link issued", "object_id", obj.ID, "kind", link.Kind, "expires_at", link.ExpiresAt)
	return link, nil
}

// Resolve looks a token up. An expired or revoked link is not an error: it
// comes back with Active=false. Unknown tokens yield common.ErrorNotFound.
func (s *LinkService) Resolve(ctx context.Context, token string) (*Resolution, error) {
	link, err := s.repomanager.Links(s.db).GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.LinkResolved("not_found")
			s.logger.Info(ctx, "link unavailable", "reason", "not_found")
		}
		return nil, err
	}

	obj, err := s.repomanager.Objects(s.db).GetByID(ctx, link.ObjectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.LinkResolved("not_found")
			s.logger.Info(ctx, "link unavailable", "reason", "object_gone", "link_id", link.ID)
		}
		return nil, err
	}

	res := &Resolution{Link: link, Object: obj, Active: link.Usable(s.clock.Now())}
	if !res.Active {
		s.metrics.LinkResolved("expired")
		s.logger.Info(ctx, "link unavailable", "reason", "expired", "link_id", link.ID, "expires_at", link.ExpiresAt)
	} else {
		s.metrics.LinkResolved("active")
	}
	return res, nil
}

// Authorize checks the access code of a protected link. Public links need
// no code.
func (s *LinkService) Authorize(link *models.AccessLink, code string) error {
	if link.Kind != models.LinkProtected {
		return nil
	}
	if !cryptox.VerifySecret([]byte(code), link.CodeSalt, link.CodeHash) {
		return common.ErrorForbidden
	}
	return nil
}

// Revoke deactivates a link. Only the owner of the target object may do so;
// revoking an inactive link again is fine.
func (s *LinkService) Revoke(ctx context.Context, token, ownerID string) error {
	repo := s.repomanager.Links(s.db)

	link, err := repo.GetByToken(ctx, token)
	if err != nil {
		return err
	}

	obj, err := s.repomanager.Objects(s.db).GetByID(ctx, link.ObjectID)
	if err != nil {
		return err
	}
	if !obj.OwnedBy(ownerID) {
		return common.ErrorForbidden
	}

	if !link.Active {
		return nil
	}
	if err := repo.Deactivate(ctx, token); err != nil {
		return err
	}
	s.logger.Info(ctx, "link revoked", "link_id", link.ID)
	return nil
}

func (s *LinkService) List(ctx context.Context, ownerID string) ([]*models.AccessLink, error) {
	return s.repomanager.Links(s.db).ListByOwner(ctx, ownerID)
}

// PurgeExpired deletes links whose deadline is before the given instant.
func (s *LinkService) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.repomanager.Links(s.db).DeleteExpired(ctx, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info(ctx, "expired links purged", "count", n)
	}
	return n, nil
}
