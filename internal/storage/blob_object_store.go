package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBlobAPIURL = "https://blob.vercel-storage.com"

// BlobObjectStore talks to a token authenticated http blob api. Objects are
// written without a random suffix so the same key always maps to the same
// pathname.
type BlobObjectStore struct {
	client *resty.Client

	// download fetches public blob urls and never carries the token.
	download *resty.Client
}

var _ ObjectStore = (*BlobObjectStore)(nil)

func NewBlobObjectStore(apiURL, token string) (*BlobObjectStore, error) {
	if token == "" {
		return nil, fmt.Errorf("blob read/write token is required")
	}
	if apiURL == "" {
		apiURL = DefaultBlobAPIURL
	}

	client := resty.New().
		SetBaseURL(apiURL).
		SetAuthToken(token).
		SetHeader("x-api-version", "7").
		SetTimeout(60 * time.Second)

	return &BlobObjectStore{
		client:   client,
		download: resty.New().SetTimeout(60 * time.Second),
	}, nil
}

type blobInfo struct {
	URL      string `json:"url"`
	Pathname string `json:"pathname"`
	Size     int64  `json:"size"`
}

type blobListResponse struct {
	Blobs   []blobInfo `json:"blobs"`
	Cursor  string     `json:"cursor"`
	HasMore bool       `json:"hasMore"`
}

func (s *BlobObjectStore) PutObject(ctx context.Context, key string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read data for blob %s: %w", key, err)
	}

	var uploaded blobInfo
	res, err := s.client.R().
		SetContext(ctx).
		SetHeader("x-add-random-suffix", "0").
		SetHeader("x-allow-overwrite", "1").
		SetBody(body).
		SetResult(&uploaded).
		Put("/" + key)
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", key, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("failed to upload blob %s: status %d: %s", key, res.StatusCode(), res.String())
	}

	slog.Info("blob uploaded successfully", "key", key, "url", uploaded.URL)
	return nil
}

func (s *BlobObjectStore) iterBlobs(ctx context.Context, prefix string) func(yield func(blobInfo, error) bool) {
	return func(yield func(blobInfo, error) bool) {
		cursor := ""
		for {
			req := s.client.R().
				SetContext(ctx).
				SetQueryParam("prefix", prefix).
				SetQueryParam("limit", "1000")
			if cursor != "" {
				req.SetQueryParam("cursor", cursor)
			}

			var page blobListResponse
			res, err := req.SetResult(&page).Get("/")
			if err != nil {
				yield(blobInfo{}, fmt.Errorf("failed to list blobs with prefix %s: %w", prefix, err))
				return
			}
			if !res.IsSuccess() {
				yield(blobInfo{}, fmt.Errorf("failed to list blobs with prefix %s: status %d: %s", prefix, res.StatusCode(), res.String()))
				return
			}

			for _, blob := range page.Blobs {
				if !yield(blob, nil) {
					return
				}
			}

			if !page.HasMore || page.Cursor == "" {
				return
			}
			cursor = page.Cursor
		}
	}
}

func (s *BlobObjectStore) ListObjects(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	for blob, err := range s.iterBlobs(ctx, prefix) {
		if err != nil {
			return nil, err
		}
		objects = append(objects, Object{Name: blob.Pathname, Size: blob.Size})
	}
	return objects, nil
}

func (s *BlobObjectStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	url := ""
	for blob, err := range s.iterBlobs(ctx, key) {
		if err != nil {
			return nil, err
		}
		if blob.Pathname == key {
			url = blob.URL
			break
		}
	}
	if url == "" {
		return nil, fmt.Errorf("blob %s: %w", key, ErrObjectNotFound)
	}

	res, err := s.download.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", key, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("failed to download blob %s: status %d", key, res.StatusCode())
	}

	return res.Body(), nil
}

func (s *BlobObjectStore) DeleteObjects(ctx context.Context, prefix string) error {
	var urls []string
	for blob, err := range s.iterBlobs(ctx, prefix) {
		if err != nil {
			return err
		}
		urls = append(urls, blob.URL)
	}

	if len(urls) == 0 {
		return nil
	}

	res, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string][]string{"urls": urls}).
		Post("/delete")
	if err != nil {
		return fmt.Errorf("failed to delete blobs with prefix %s: %w", prefix, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("failed to delete blobs with prefix %s: status %d: %s", prefix, res.StatusCode(), res.String())
	}

	slog.Info("blobs deleted successfully", "prefix", prefix, "count", len(urls))
	return nil
}
