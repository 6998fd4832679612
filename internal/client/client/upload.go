package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/linkvault/internal/client/models"
	"github.com/dmitrijs2005/linkvault/internal/common"
)

type uploadResponse struct {
	Object *models.Object `json:"object"`
	Error  string         `json:"error"`
}

// Upload sends the file at path to the HTTP upload endpoint. An expired
// access token is rotated once and the upload retried.
func (s *GRPCClient) Upload(ctx context.Context, path string) (*models.Object, error) {
	obj, status, err := s.upload(ctx, path)
	if status == http.StatusUnauthorized {
		if rerr := s.refresh(ctx); rerr != nil {
			return nil, rerr
		}
		obj, _, err = s.upload(ctx, path)
	}
	return obj, err
}

func (s *GRPCClient) upload(ctx context.Context, path string) (*models.Object, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	url := strings.TrimRight(s.httpBaseURL, "/") + "/api/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pr.Close()
		return nil, 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if access, _ := s.tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var body uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("upload: status %d: %w", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusCreated && body.Object != nil:
		return body.Object, resp.StatusCode, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, fmt.Errorf("%w: %s", ErrUnauthorized, body.Error)
	case resp.StatusCode == http.StatusForbidden && body.Error == common.ErrQuotaExceeded.Error():
		return nil, resp.StatusCode, common.ErrQuotaExceeded
	default:
		return nil, resp.StatusCode, fmt.Errorf("upload: status %d: %s", resp.StatusCode, body.Error)
	}
}
