package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/dbx"
	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/blob"
	"github.com/dmitrijs2005/linkvault/internal/server/metrics"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/linkvault/internal/timex"
	"github.com/google/uuid"
)

// FallbackName is used when no display name can be derived.
const FallbackName = "downloaded_file"

// ObjectService owns StoredObject metadata and delegates bytes to a blob.Store.
type ObjectService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	quota       *QuotaService
	clock       timex.Clock
	logger      logging.Logger
	metrics     *metrics.Metrics
}

func NewObjectService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, quota *QuotaService,
	clock timex.Clock, logger logging.Logger, mx *metrics.Metrics) *ObjectService {
	return &ObjectService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		quota:       quota,
		clock:       clock,
		logger:      logger.With("module", "objects"),
		metrics:     mx,
	}
}

// Create stores r as a new object owned by ownerID. The bytes are capped at
// the remaining quota and the limit is re-checked under the owner's quota row
// lock before the metadata is committed. A blob written for a creation that
// fails is deleted again.
func (s *ObjectService) Create(ctx context.Context, ownerID string, name string, r io.Reader) (*models.StoredObject, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	name = cleanName(name)

	acct, err := s.quota.Account(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	remaining := acct.Remaining()
	// one byte past the remainder is enough to detect an overflow
	r = io.LimitReader(r, remaining+1)

	key, size, err := s.blobs.Put(ctx, r)
	if err != nil {
		return nil, err
	}
	if size > remaining {
		s.discardBlob(ctx, key)
		return nil, fmt.Errorf("%w: upload exceeds remaining %d bytes", common.ErrQuotaExceeded, remaining)
	}

	now := s.clock.Now()
	obj := &models.StoredObject{
		ID:         uuid.NewString(),
		OwnerID:    &ownerID,
		StorageKey: key,
		Name:       name,
		Size:       size,
		CreatedAt:  now,
		ExpiresAt:  now.Add(models.DefaultObjectLifetime),
	}

	err = withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.quota.reserve(ctx, tx, ownerID, size); err != nil {
			return err
		}
		return s.repomanager.Objects(tx).Create(ctx, obj)
	})
	if err != nil {
		s.discardBlob(ctx, key)
		return nil, err
	}

	s.metrics.BytesStored(size)
	s.logger.Info(ctx, "object stored", "object_id", obj.ID, "size", size)
	return obj, nil
}

func (s *ObjectService) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Error(ctx, "orphan blob left behind", "storage_key", key, "error", err)
	}
}

// checkID rejects ids that cannot name an object before they reach the
// database.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}
	return nil
}

func (s *ObjectService) Get(ctx context.Context, id string) (*models.StoredObject, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repomanager.Objects(s.db).GetByID(ctx, id)
}

func (s *ObjectService) List(ctx context.Context, ownerID string, filter objects.ListFilter) ([]*models.StoredObject, error) {
	return s.repomanager.Objects(s.db).ListByOwner(ctx, ownerID, filter)
}

// Open streams the object's content. The caller must close the reader.
func (s *ObjectService) Open(ctx context.Context, obj *models.StoredObject) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, obj.StorageKey)
}

// Delete removes an owner's object. Its links go with it; the blob is
// released afterwards and a failure there is only logged.
func (s *ObjectService) Delete(ctx context.Context, id, ownerID string) error {
	if err := checkID(id); err != nil {
		return err
	}
	repo := s.repomanager.Objects(s.db)

	obj, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !obj.OwnedBy(ownerID) {
		return common.ErrorForbidden
	}

	if err := repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, obj.StorageKey); err != nil {
		s.logger.Error(ctx, "failed to release blob", "object_id", id, "storage_key", obj.StorageKey, "error", err)
	}
	s.logger.Info(ctx, "object deleted", "object_id", id)
	return nil
}

// cleanName keeps only the last path element of a client-supplied name.
func cleanName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return FallbackName
	}
	return name
}
