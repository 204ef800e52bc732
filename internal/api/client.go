// Package api implements the tagging client for the Nimbus REST API:
// a thin HTTP client that authenticates, tags every resource it
// creates with runner/process/scope identity, retries transient
// provider errors, and knows how to sweep its own resources away.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/nimbusinfra/acctest/internal/events"
)

// Scope records which fixture lifetime owns a resource.
type Scope string

const (
	ScopeSession  Scope = "session"
	ScopeFunction Scope = "function"
)

// cleanupOrder lists every collection endpoint relevant to cleanup.
// Resources that block deletion of others come first: snapshots must be
// gone before their servers, servers before their networks and groups.
var cleanupOrder = []string{
	"/volume-snapshots",
	"/servers",
	"/load-balancers",
	"/volumes",
	"/floating-ips",
	"/subnets",
	"/networks",
	"/server-groups",
	"/custom-images",
	"/objects-users",
}

// Config wires a Client. BaseURL and Token are required; everything
// else has a sensible default.
type Config struct {
	BaseURL string
	Token   string

	// Runner and Process are the identity tags attached to every
	// created resource (see internal/config.NewIdentity).
	Runner  string
	Process string

	Scope Scope
	Zone  string

	// ReadOnly rejects every mutating request. Tests that only need to
	// observe must not accidentally mutate.
	ReadOnly bool

	// LockPath enables cross-process request serialization through an
	// advisory file lock. Empty disables it.
	LockPath string

	UserAgent string

	Sink     events.Sink
	Handlers *DeleteHandlerRegistry

	// Objects establishes storage sessions with per-user credentials
	// for the objects-user delete cascade.
	Objects ObjectsSessionFactory

	RetryMax      int
	BackoffFactor time.Duration
	RetryWaitMax  time.Duration

	// PollInterval paces the delete-handler wait loops.
	PollInterval          time.Duration
	SnapshotDeleteTimeout time.Duration
	CredentialTimeout     time.Duration
}

// Client talks to the provider API. All requests carry the bearer
// token; all POSTed resources carry the identity tags unless
// explicitly suppressed.
type Client struct {
	cfg      Config
	http     *retryablehttp.Client
	handlers *DeleteHandlerRegistry
	sink     events.Sink

	// origin and basePath split the base URL, e.g.
	// https://api.nimbus.cloud and /v1, for href normalization.
	origin   string
	basePath string
}

// New builds a Client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("api: token is required")
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("api: invalid base URL %q", cfg.BaseURL)
	}

	if cfg.Scope == "" {
		cfg.Scope = ScopeFunction
	}
	if cfg.Sink == nil {
		cfg.Sink = events.Discard
	}
	if cfg.Handlers == nil {
		cfg.Handlers = DefaultHandlers()
	}
	if cfg.Objects == nil {
		cfg.Objects = newObjectsSession
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = defaultRetryMax
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = defaultBackoffFactor
	}
	if cfg.RetryWaitMax == 0 {
		cfg.RetryWaitMax = defaultRetryWaitMax
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.SnapshotDeleteTimeout == 0 {
		cfg.SnapshotDeleteTimeout = 60 * time.Second
	}
	if cfg.CredentialTimeout == 0 {
		cfg.CredentialTimeout = 2 * time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Acceptance Tests"
		if cfg.Zone != "" {
			cfg.UserAgent = fmt.Sprintf("Acceptance Tests (%s)", cfg.Zone)
		}
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.CheckRetry = CheckRetry
	rc.Backoff = Backoff(cfg.BackoffFactor)
	rc.Logger = &retryLogger{logger: slog.Default()}

	var transport http.RoundTripper
	if cfg.LockPath != "" {
		transport = NewSerializingTransport(nil, cfg.LockPath)
	}
	rc.HTTPClient = &http.Client{Transport: transport}

	return &Client{
		cfg:      cfg,
		http:     rc,
		handlers: cfg.Handlers,
		sink:     cfg.Sink,
		origin:   base.Scheme + "://" + base.Host,
		basePath: strings.TrimRight(base.Path, "/"),
	}, nil
}

// Emit forwards an event to the configured sink.
func (c *Client) Emit(ctx context.Context, e events.Event) {
	c.sink.Record(ctx, e)
}

// Scope returns the lifecycle scope this client tags resources with.
func (c *Client) Scope() Scope { return c.cfg.Scope }

// Runner returns the runner identity this client tags resources with.
func (c *Client) Runner() string { return c.cfg.Runner }

// Process returns the process identity this client tags resources with.
func (c *Client) Process() string { return c.cfg.Process }

// Zone returns the default zone of this client, if any.
func (c *Client) Zone() string { return c.cfg.Zone }

// URL normalizes a path or href against the configured base URL.
// Absolute URLs pass through; version-prefixed hrefs such as
// /v1/servers/42 are joined to the host only, everything else to the
// full base URL.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, c.cfg.BaseURL) {
		return path
	}

	// Self-links repeat the base URL's path prefix; joining them under
	// the full base would double it.
	if c.basePath != "" && (path == c.basePath || strings.HasPrefix(path, c.basePath+"/")) {
		return c.origin + path
	}

	return c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
}

// do sends one request and validates the response. Every response
// fires an observability event before validation. A DELETE answered
// with 404 is an idempotent success, never an error.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.cfg.ReadOnly && method != http.MethodGet && method != http.MethodHead {
		return nil, &ReadOnlyError{Method: method}
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.URL(path), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, c.URL(path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	c.sink.Record(ctx, events.Request(req.Request, resp, time.Since(start)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	// Already gone counts as deleted.
	if method == http.MethodDelete && resp.StatusCode == http.StatusNotFound {
		return data, nil
	}

	return nil, &HTTPError{
		Method:     method,
		URL:        c.URL(path),
		StatusCode: resp.StatusCode,
		Body:       data,
	}
}

func decodeDocument(data []byte) (Document, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return doc, nil
}

// Get fetches a single resource representation.
func (c *Client) Get(ctx context.Context, path string) (Document, error) {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

// GetList fetches a collection endpoint.
func (c *Client) GetList(ctx context.Context, path string) ([]Document, error) {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", path, err)
	}
	return docs, nil
}

// Post creates a resource, injecting the identity tags into the body.
// A nil body posts without payload (used for server actions).
func (c *Client) Post(ctx context.Context, path string, body Document) (Document, error) {
	if body != nil {
		tagged := make(Document, len(body)+1)
		for k, v := range body {
			tagged[k] = v
		}
		tagged["tags"] = map[string]string{
			"runner":  c.cfg.Runner,
			"process": c.cfg.Process,
			"scope":   string(c.cfg.Scope),
			"zone":    c.cfg.Zone,
		}
		body = tagged
	}

	data, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

// PostUntagged creates a resource without injecting identity tags. The
// resulting resource is invisible to the cleanup sweep; callers own its
// lifecycle entirely.
func (c *Client) PostUntagged(ctx context.Context, path string, body Document) (Document, error) {
	data, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

// Patch updates properties of a resource.
func (c *Client) Patch(ctx context.Context, path string, body Document) (Document, error) {
	data, err := c.do(ctx, http.MethodPatch, path, body)
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

// Delete removes a resource through the delete-handler dispatch, so
// special cases (snapshots, objects users) get their specialized
// procedure.
func (c *Client) Delete(ctx context.Context, url string) error {
	return c.handlers.HandlerFor(url)(ctx, c, url)
}

// DeleteRaw issues a plain DELETE, bypassing the handler dispatch.
// Handlers must use this, lest they recurse into themselves.
func (c *Client) DeleteRaw(ctx context.Context, url string) error {
	_, err := c.do(ctx, http.MethodDelete, url, nil)
	return err
}

// Resources lists the resources at a collection endpoint that carry
// this client's runner tag.
func (c *Client) Resources(ctx context.Context, path string) ([]Document, error) {
	return c.GetList(ctx, fmt.Sprintf("%s?tag:runner=%s", path, c.cfg.Runner))
}

// RunnerResources walks every cleanup-relevant collection endpoint in
// deletion-safe order, yielding each resource created by this runner.
// A failing endpoint yields one error and the walk continues with the
// next endpoint.
func (c *Client) RunnerResources(ctx context.Context) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		for _, path := range cleanupOrder {
			docs, err := c.Resources(ctx, path)
			if err != nil {
				if !yield(nil, fmt.Errorf("failed to list %s: %w", path, err)) {
					return
				}
				continue
			}

			for _, doc := range docs {
				if !yield(doc, nil) {
					return
				}
			}
		}
	}
}

// ObjectsEndpointFor derives the object-storage endpoint for a zone
// from the API URL, e.g. api.nimbus.cloud and zone ost1 become
// objects.ost.nimbus.cloud.
func (c *Client) ObjectsEndpointFor(zone string) string {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return ""
	}

	host := u.Hostname()
	region := strings.TrimRight(zone, "0123456789")

	// Keep any environment prefix, e.g. staging-api → staging-objects.
	if i := strings.Index(host, "api"); i >= 0 {
		host = host[:i] + "objects" + host[i+len("api"):]
	}

	name, domain, found := strings.Cut(host, ".")
	if !found {
		return name
	}

	return fmt.Sprintf("%s.%s.%s", name, region, domain)
}
