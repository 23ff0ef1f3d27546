package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/postgrest-go"

	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

// Config points the client at a Supabase project.
type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration

	// HTTPClient overrides the transport used by both SDK clients, mostly for tests.
	HTTPClient *http.Client
}

// Client hands out per-call GoTrue and PostgREST clients for one project.
// The SDK clients carry their token and headers as state, so they are never
// shared between requests.
type Client struct {
	authURL   string
	restURL   string
	anonKey   string
	timeout   time.Duration
	transport http.RoundTripper
	gotrue    gotrue.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase url is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase anon key is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid supabase url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid supabase url scheme %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		transport = cfg.HTTPClient.Transport
	}

	authURL := base.String() + authBasePath
	return &Client{
		authURL:   authURL,
		restURL:   base.String() + restBasePath,
		anonKey:   cfg.AnonKey,
		timeout:   timeout,
		transport: transport,
		// The project reference is unused once the URL is overridden.
		gotrue: gotrue.New("", cfg.AnonKey).WithCustomGoTrueURL(authURL),
	}, nil
}

// auth returns a GoTrue client bound to ctx. An empty token falls back to
// the anon key. query is merged into every request URL, which is how
// redirect_to reaches endpoints the SDK has no field for.
func (c *Client) auth(ctx context.Context, token string, query url.Values) gotrue.Client {
	if token == "" {
		token = c.anonKey
	}
	httpClient := http.Client{
		Timeout:   c.timeout,
		Transport: &callTransport{ctx: ctx, query: query, next: c.transport},
	}
	return c.gotrue.WithClient(httpClient).WithToken(token)
}

// rest returns a PostgREST client that runs as the access token on ctx.
func (c *Client) rest(ctx context.Context) *postgrest.Client {
	token := repositories.AccessTokenFromContext(ctx)
	if token == "" {
		token = c.anonKey
	}
	client := postgrest.NewClient(c.restURL, "public", map[string]string{
		"apikey":        c.anonKey,
		"Authorization": "Bearer " + token,
	})
	client.Transport.Parent = &callTransport{ctx: ctx, next: c.transport}
	return client
}

// Ping checks the auth server health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.auth(ctx, "", nil).HealthCheck(); err != nil {
		return translateError(err)
	}
	return nil
}

// callTransport attaches the caller's context and extra query parameters to
// requests the SDKs build without either.
type callTransport struct {
	ctx   context.Context
	query url.Values
	next  http.RoundTripper
}

func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if len(t.query) > 0 {
		q := req.URL.Query()
		for key, values := range t.query {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	return t.next.RoundTrip(req)
}
