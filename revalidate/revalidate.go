// Package revalidate notifies an external cache of paths whose rendered
// content changed. Mutations invoke the hook fire-and-forget: a failed
// invalidation is logged, never surfaced.
package revalidate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type Hook interface {
	Invalidate(ctx context.Context, path string) (err error)
}

// NopHook discards invalidations. Used when no revalidation endpoint is
// configured.
type NopHook struct{}

var _ Hook = (*NopHook)(nil)

func (NopHook) Invalidate(context.Context, string) error {
	return nil
}

// HTTPHook requests revalidation from an HTTP endpoint, passing the opaque
// path through unchanged as a query parameter.
type HTTPHook struct {
	endpoint string
	client   *http.Client
}

var _ Hook = (*HTTPHook)(nil)

func NewHTTPHook(endpoint string, client *http.Client) *HTTPHook {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPHook{
		endpoint: endpoint,
		client:   client,
	}
}

func (hook *HTTPHook) Invalidate(ctx context.Context, path string) error {
	reqURL := hook.endpoint + "?path=" + url.QueryEscape(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create revalidation request: %w", err)
	}

	res, err := hook.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request revalidation: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("revalidation endpoint returned status %d", res.StatusCode)
	}

	return nil
}
