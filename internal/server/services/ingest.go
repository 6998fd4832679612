package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/fetch"
	"github.com/dmitrijs2005/linkvault/internal/server/metrics"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
)

// internalLinkPath matches the share and direct download paths served by
// the HTTP boundary.
var internalLinkPath = regexp.MustCompile(`/s/([0-9a-f-]{36})/?(?:now/)?`)

// looseFilename recovers a filename from a Content-Disposition header that
// mime.ParseMediaType rejects.
var looseFilename = regexp.MustCompile(`(?i)filename\s*=\s*"?([^";]+)"?`)

const (
	sourceInternal = "internal"
	sourceExternal = "external"
)

// IngestService creates objects from URLs. Links issued by this system are
// copied blob to blob; anything else is fetched.
type IngestService struct {
	links   *LinkService
	objects *ObjectService
	fetcher fetch.Fetcher
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewIngestService(links *LinkService, objects *ObjectService, fetcher fetch.Fetcher, logger logging.Logger, mx *metrics.Metrics) *IngestService {
	return &IngestService{
		links:   links,
		objects: objects,
		fetcher: fetcher,
		logger:  logger.With("module", "ingest"),
		metrics: mx,
	}
}

// InternalToken extracts the link token when u points at one of our own
// links.
func InternalToken(u *url.URL) (string, bool) {
	m := internalLinkPath.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Ingest creates a new object owned by ownerID from sourceURL. When the
// requester already owns the linked object it returns that object together
// with common.ErrSelfCopy and creates nothing.
func (s *IngestService) Ingest(ctx context.Context, ownerID, sourceURL string) (*models.StoredObject, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	source := sourceExternal
	var obj *models.StoredObject
	if token, ok := InternalToken(u); ok {
		source = sourceInternal
		obj, err = s.ingestInternal(ctx, ownerID, token, u.Query().Get("code"))
	} else {
		obj, err = s.ingestExternal(ctx, ownerID, u)
	}

	s.metrics.Ingested(source, ingestOutcome(err))
	if err != nil && !errors.Is(err, common.ErrSelfCopy) {
		s.logger.Warn(ctx, "ingestion failed", "source", source, "error", err)
		return nil, err
	}
	return obj, err
}

func (s *IngestService) ingestInternal(ctx context.Context, ownerID, token, code string) (*models.StoredObject, error) {
	res, err := s.links.Resolve(ctx, token)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidLink
	}
	if err != nil {
		return nil, err
	}
	if !res.Active {
		return nil, common.ErrLinkExpired
	}
	if err := s.links.Authorize(res.Link, code); err != nil {
		return nil, err
	}
	if res.Object.OwnedBy(ownerID) {
		return res.Object, common.ErrSelfCopy
	}
	if err := s.objects.quota.Reserve(ctx, ownerID, res.Object.Size); err != nil {
		return nil, err
	}

	rc, err := s.objects.Open(ctx, res.Object)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidLink
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	obj, err := s.objects.Create(ctx, ownerID, res.Object.Name, rc)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "internal link copied", "from_object_id", res.Object.ID, "object_id", obj.ID)
	return obj, nil
}

func (s *IngestService) ingestExternal(ctx context.Context, ownerID string, u *url.URL) (*models.StoredObject, error) {
	res, err := s.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	// the announced length only short-circuits; Create enforces the real size
	if n := contentLength(res.Header); n > 0 {
		if err := s.objects.quota.Reserve(ctx, ownerID, n); err != nil {
			return nil, err
		}
	}

	name := dispositionName(res.Header.Get("Content-Disposition"))
	if name == "" {
		name = urlName(u)
	}

	obj, err := s.objects.Create(ctx, ownerID, name, fetchReader{res.Body})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "external content fetched", "host", u.Host, "object_id", obj.ID, "size", obj.Size)
	return obj, nil
}

// fetchReader tags body read faults as fetch failures.
type fetchReader struct {
	r io.Reader
}

func (f fetchReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %v", common.ErrFetchFailed, err)
	}
	return n, err
}

func dispositionName(header string) string {
	if header == "" {
		return ""
	}
	var name string
	if _, params, err := mime.ParseMediaType(header); err == nil {
		name = params["filename"]
	} else if m := looseFilename.FindStringSubmatch(header); m != nil {
		name = m[1]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return cleanName(name)
}

// urlName is the last path segment. A path ending in a slash has an empty
// last segment.
func urlName(u *url.URL) string {
	if strings.HasSuffix(u.Path, "/") {
		return FallbackName
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return FallbackName
	}
	return name
}

func contentLength(h http.Header) int64 {
	n, err := strconv.ParseInt(h.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func ingestOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrSelfCopy):
		return "self_copy"
	case errors.Is(err, common.ErrInvalidLink), errors.Is(err, common.ErrLinkExpired):
		return "unavailable"
	case errors.Is(err, common.ErrFetchFailed):
		return "fetch_failed"
	case errors.Is(err, common.ErrQuotaExceeded):
		return "quota_exceeded"
	default:
		return "error"
	}
}
