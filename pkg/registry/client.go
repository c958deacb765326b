package registry

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lberndt/npmharvest/pkg/errors"
)

// StatusError reports a non-success HTTP response. It carries the request
// target so batch failures can be traced back to a concrete URL.
type StatusError struct {
	Host       string
	Path       string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s%s", e.StatusCode, e.Host, e.Path)
}

// Client provides shared HTTP functionality for the listing and archive
// fetchers. Requests are context-aware; no client-level timeout is set,
// so a run is bounded only by caller cancellation.
type Client struct {
	http    *http.Client
	headers map[string]string
}

// NewClient creates a Client with the given default headers.
// Pass nil for headers if no default headers are needed.
func NewClient(headers map[string]string) *Client {
	return &Client{
		http:    &http.Client{Transport: newTransport()},
		headers: headers,
	}
}

// newTransport disables the automatic gzip handling of the default
// transport. The listing fetcher negotiates compression itself so the
// response stream reaches the inflater untouched.
func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	return t
}

// Get performs an HTTP GET and returns the raw response body.
// Non-2xx responses produce a FETCH_FAILED error carrying a [StatusError].
// The caller owns the returned body and must close it.
func (c *Client) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetCompressed performs an HTTP GET requesting gzip transfer encoding and
// returns a reader over the inflated response body. Servers that answer
// uncompressed are passed through untouched. Closing the returned reader
// closes the underlying response body as well.
func (c *Client) GetCompressed(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, rawURL, map[string]string{"Accept-Encoding": "gzip, deflate"})
	if err != nil {
		return nil, err
	}
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp.Body, nil
	}
	zr, err := Inflate(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return &inflatedBody{Reader: zr, body: resp.Body}, nil
}

func (c *Client) do(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", rawURL)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "get %s", rawURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errors.Wrap(errors.ErrCodeFetch, statusError(req.URL, resp.StatusCode), "get %s", rawURL)
	}
	return resp, nil
}

// Inflate wraps r in a gzip reader. A malformed stream header produces a
// DECOMPRESS_FAILED error.
func Inflate(r io.Reader) (*gzip.Reader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecompress, err, "inflate gzip stream")
	}
	return zr, nil
}

// inflatedBody ties a gzip reader to the response body it inflates, so a
// single Close releases both.
type inflatedBody struct {
	*gzip.Reader
	body io.Closer
}

func (b *inflatedBody) Close() error {
	err := b.Reader.Close()
	if cerr := b.body.Close(); err == nil {
		err = cerr
	}
	return err
}

func statusError(u *url.URL, code int) *StatusError {
	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return &StatusError{Host: u.Host, Path: path, StatusCode: code}
}
