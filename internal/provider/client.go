package provider

import (
	"context"
	"crypto/sha1" //nolint:gosec // Mojang publishes SHA-1 digests
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/logging"
)

const (
	// DefaultUserAgent identifies the manager to upstream APIs.
	DefaultUserAgent = "lodestone-server-manager/dev"
	// DefaultTimeout bounds metadata requests. Jar downloads are bounded by the caller's context.
	DefaultTimeout = 10 * time.Second
	// DefaultCacheTTL is how long version metadata is reused.
	DefaultCacheTTL = 10 * time.Minute

	copyBufferSize = 32 * 1024
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the metadata request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithCacheTTL sets how long metadata is cached.
func WithCacheTTL(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is the HTTP plumbing shared by providers.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
	ttl       time.Duration
	logger    logging.Logger
}

// NewClient creates a Client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{},
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		ttl:       DefaultCacheTTL,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// getJSON fetches url and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, url)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("fetching metadata", logging.String("url", url))
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("GET %s: unexpected status code: %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "decode %s", url)
	}
	return nil
}

// checksum is an expected digest. An empty value skips verification.
type checksum struct {
	algo  string
	value string
}

func (s checksum) hasher() hash.Hash {
	if s.value == "" {
		return nil
	}
	switch s.algo {
	case "sha256":
		return sha256.New()
	case "sha1":
		return sha1.New() //nolint:gosec // verification only
	default:
		return nil
	}
}

// download streams url into dest through dest+".part". The partial file is
// removed on any failure, including cancellation.
func (c *Client) download(ctx context.Context, url, dest string, want checksum, progress ProgressFunc) (err error) {
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return err
	}

	c.logger.Info("downloading jar", logging.String("url", url), logging.String("dest", dest))
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to execute request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("unexpected status code: %d", resp.StatusCode)
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(part)
		}
	}()

	writers := []io.Writer{out}
	h := want.hasher()
	if h != nil {
		writers = append(writers, h)
	}
	if progress != nil {
		writers = append(writers, &progressWriter{total: resp.ContentLength, report: progress})
	}
	if _, err = io.CopyBuffer(io.MultiWriter(writers...), resp.Body, make([]byte, copyBufferSize)); err != nil {
		return errors.Wrap(err, "failed to write file")
	}
	if err = out.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}

	if h != nil {
		if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, want.value) {
			err = errors.Wrapf(ErrChecksum, "%s: got %s, want %s", want.algo, got, want.value)
			return err
		}
	}
	if err = os.Rename(part, dest); err != nil {
		return errors.Wrap(err, "failed to move jar into place")
	}
	return nil
}

type progressWriter struct {
	done   int64
	total  int64
	report ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	p.report(p.done, p.total)
	return len(b), nil
}
