package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPStore reads documents hosted behind HTTP(S) URLs, such as the upload
// CDN. Writes are out of scope; uploads go through the uploader instead.
type HTTPStore struct {
	client *http.Client
}

// NewHTTPStore builds a store with the given request timeout.
func NewHTTPStore(timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPStore{client: &http.Client{Timeout: timeout}}
}

// Exists issues a HEAD request for the URL.
func (s *HTTPStore) Exists(ctx context.Context, url string) (bool, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}

	response, err := s.client.Do(request)
	if err != nil {
		return false, err
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if response.StatusCode >= 400 {
		return false, fmt.Errorf("unexpected status %d for %s", response.StatusCode, url)
	}

	return true, nil
}

// Size returns the Content-Length reported by the host.
func (s *HTTPStore) Size(ctx context.Context, url string) (int64, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}

	response, err := s.client.Do(request)
	if err != nil {
		return 0, err
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return 0, fmt.Errorf("unexpected status %d for %s", response.StatusCode, url)
	}

	return response.ContentLength, nil
}

// OpenRead streams the object body.
func (s *HTTPStore) OpenRead(ctx context.Context, url string) (io.ReadCloser, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	response, err := s.client.Do(request)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		response.Body.Close()
		return nil, fmt.Errorf("unexpected status %d for %s", response.StatusCode, url)
	}

	return response.Body, nil
}

// Resolver routes each path to the store able to serve it.
type Resolver struct {
	local  Store
	remote Store
}

// NewResolver wires the local and remote stores.
func NewResolver(local, remote Store) *Resolver {
	return &Resolver{local: local, remote: remote}
}

func (r *Resolver) pick(path string) Store {
	if IsRemote(path) && r.remote != nil {
		return r.remote
	}
	return r.local
}

// Exists delegates to the store matching the path.
func (r *Resolver) Exists(ctx context.Context, path string) (bool, error) {
	return r.pick(path).Exists(ctx, path)
}

// Size delegates to the store matching the path.
func (r *Resolver) Size(ctx context.Context, path string) (int64, error) {
	return r.pick(path).Size(ctx, path)
}

// OpenRead delegates to the store matching the path.
func (r *Resolver) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	return r.pick(path).OpenRead(ctx, path)
}
