// Package crates provides the high-level crates.io API client: blocking
// endpoint operations, a channel-based async facade, and a lazy paginated
// crate stream, all sharing one rate-limited request pipeline.
package crates

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pkgwatch/crates-io-client/pkg/codec"
	"github.com/pkgwatch/crates-io-client/pkg/logging"
	"github.com/pkgwatch/crates-io-client/pkg/ratelimit"
	"github.com/pkgwatch/crates-io-client/pkg/transport"
	"github.com/pkgwatch/crates-io-client/pkg/types"
)

// Registry selects an alternative crate registry compatible with the
// crates.io API.
type Registry struct {
	// URL of the registry API root, e.g.
	// "https://crates.my-registry.com/api/v1/".
	URL string

	// Name of the registry. When set, the auth token is read from the
	// CARGO_REGISTRIES_<NAME>_TOKEN environment variable.
	Name string

	// Token authenticates registry requests when Name is unset.
	Token string
}

// token resolves the Authorization value for the registry.
func (r *Registry) token() string {
	if r.Name != "" {
		return os.Getenv("CARGO_REGISTRIES_" + strings.ToUpper(r.Name) + "_TOKEN")
	}
	return r.Token
}

// Config holds the client configuration.
type Config struct {
	// UserAgent identifies the client to the registry (REQUIRED by the
	// crates.io crawler policy).
	// Format: "my_bot (my_bot.com/info)" or "my_bot (help@my_bot.com)".
	UserAgent string

	// MinInterval is the minimum delay between successive requests. The
	// crawler guidelines suggest one request per second or less. Zero
	// disables pacing as a deliberate opt-out; even then only one request
	// is executed concurrently.
	MinInterval time.Duration

	// RequestTimeout bounds a single round trip.
	RequestTimeout time.Duration

	// Registry targets an alternative registry. Nil means crates.io.
	Registry *Registry

	// HTTPClient overrides the underlying HTTP client (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration that satisfies the crates.io
// crawler policy.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:      userAgent,
		MinInterval:    ratelimit.DefaultMinInterval,
		RequestTimeout: transport.DefaultTimeout,
	}
}

// Client is a blocking crates.io API client. It is safe for concurrent use;
// the rate limiter is the sole cross-goroutine coordination point and
// guarantees a single in-flight request per client instance.
type Client struct {
	transport *transport.Client
	limiter   *ratelimit.Limiter
	logger    zerolog.Logger
}

// New creates a new crates.io client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.MinInterval < 0 {
		return nil, fmt.Errorf("min_interval must not be negative (got %v)", cfg.MinInterval)
	}

	limiter := ratelimit.New(cfg.MinInterval, logging.NewLogger("ratelimit"))

	tcfg := transport.Config{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.RequestTimeout,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.Registry != nil {
		tcfg.BaseURL = cfg.Registry.URL
		tcfg.Token = cfg.Registry.token()
	}

	tc, err := transport.New(tcfg, limiter, logging.NewLogger("transport"))
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: tc,
		limiter:   limiter,
		logger:    logging.NewLogger("crates-client"),
	}, nil
}

// Limiter exposes the admission gate shared by both facades.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// get runs the admission, send, decode pipeline for one GET endpoint.
func get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var zero T

	raw, err := c.transport.Send(ctx, transport.Descriptor{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
	if err != nil {
		return zero, err
	}

	v, err := codec.Decode[T](raw.StatusCode, raw.Body, raw.URL)
	if err != nil {
		kind := KindOf(err)
		evt := c.logger.Warn()
		if kind == KindNotFound {
			evt = c.logger.Debug()
		}
		evt.Str("endpoint", path).
			Int("status", raw.StatusCode).
			Str("error_kind", string(kind)).
			Msg("Registry request unsuccessful")
		return zero, err
	}

	return v, nil
}

// cratePath builds "crates/<name>[/segments...]". Names containing a slash
// are rejected with NotFound up front; the upstream API returns a
// nonsensical error for them.
func (c *Client) cratePath(name string, segments ...string) (string, error) {
	path := "crates/" + url.PathEscape(name)
	for _, s := range segments {
		path += "/" + s
	}
	if strings.Contains(name, "/") {
		base := c.transport.BaseURL()
		return "", &codec.NotFoundError{URL: base.String() + path}
	}
	return path, nil
}

// Summary retrieves registry-wide information.
func (c *Client) Summary(ctx context.Context) (types.Summary, error) {
	return get[types.Summary](ctx, c, "summary", nil)
}

// GetCrate retrieves information about a crate. If you require detailed
// information, consider using FullCrate.
func (c *Client) GetCrate(ctx context.Context, name string) (types.CrateResponse, error) {
	path, err := c.cratePath(name)
	if err != nil {
		return types.CrateResponse{}, err
	}
	return get[types.CrateResponse](ctx, c, path, nil)
}

// CrateDownloads retrieves download stats for a crate.
func (c *Client) CrateDownloads(ctx context.Context, name string) (types.CrateDownloads, error) {
	path, err := c.cratePath(name, "downloads")
	if err != nil {
		return types.CrateDownloads{}, err
	}
	return get[types.CrateDownloads](ctx, c, path, nil)
}

// CrateOwners retrieves the owners of a crate.
func (c *Client) CrateOwners(ctx context.Context, name string) ([]types.User, error) {
	path, err := c.cratePath(name, "owners")
	if err != nil {
		return nil, err
	}
	owners, err := get[types.Owners](ctx, c, path, nil)
	if err != nil {
		return nil, err
	}
	return owners.Users, nil
}

// CrateAuthors retrieves the authors of a crate version.
func (c *Client) CrateAuthors(ctx context.Context, name, version string) (types.Authors, error) {
	path, err := c.cratePath(name, url.PathEscape(version), "authors")
	if err != nil {
		return types.Authors{}, err
	}
	res, err := get[types.AuthorsResponse](ctx, c, path, nil)
	if err != nil {
		return types.Authors{}, err
	}
	return types.Authors{Names: res.Meta.Names}, nil
}

// CrateDependencies retrieves the dependencies of a crate version.
func (c *Client) CrateDependencies(ctx context.Context, name, version string) ([]types.Dependency, error) {
	path, err := c.cratePath(name, url.PathEscape(version), "dependencies")
	if err != nil {
		return nil, err
	}
	res, err := get[types.Dependencies](ctx, c, path, nil)
	if err != nil {
		return nil, err
	}
	return res.Dependencies, nil
}

// reverseDependencyPageSize is the fixed per_page used for the reverse
// dependency endpoint, matching the upstream maximum.
const reverseDependencyPageSize = 100

// reverseDependenciesPage fetches one wire page of reverse dependencies.
func (c *Client) reverseDependenciesPage(ctx context.Context, name string, page int) (types.ReverseDependenciesResponse, error) {
	if page < 1 {
		page = 1
	}
	path, err := c.cratePath(name, "reverse_dependencies")
	if err != nil {
		return types.ReverseDependenciesResponse{}, err
	}

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(reverseDependencyPageSize))
	query.Set("page", strconv.Itoa(page))

	return get[types.ReverseDependenciesResponse](ctx, c, path, query)
}

// ReverseDependenciesPage retrieves a single page of reverse dependencies.
// Page 0 is coerced to 1.
func (c *Client) ReverseDependenciesPage(ctx context.Context, name string, page int) (types.ReverseDependencies, error) {
	wire, err := c.reverseDependenciesPage(ctx, name, page)
	if err != nil {
		return types.ReverseDependencies{}, err
	}

	var deps types.ReverseDependencies
	deps.AddPage(wire)
	return deps, nil
}

// ReverseDependencies loads all reverse dependencies of a crate. Crates with
// more than 100 dependents require multiple requests.
func (c *Client) ReverseDependencies(ctx context.Context, name string) (types.ReverseDependencies, error) {
	var deps types.ReverseDependencies
	for page := 1; ; page++ {
		wire, err := c.reverseDependenciesPage(ctx, name, page)
		if err != nil {
			return types.ReverseDependencies{}, err
		}
		if len(wire.Dependencies) == 0 {
			deps.Meta.Total = wire.Meta.Total
			break
		}
		deps.AddPage(wire)
	}
	return deps, nil
}

// ReverseDependencyCount retrieves the total number of reverse dependencies
// for a crate with a single request.
func (c *Client) ReverseDependencyCount(ctx context.Context, name string) (uint64, error) {
	wire, err := c.reverseDependenciesPage(ctx, name, 1)
	if err != nil {
		return 0, err
	}
	return wire.Meta.Total, nil
}

// Crates retrieves one page of crates matching the query. Use CratesStream
// to iterate all results without worrying about paging.
func (c *Client) Crates(ctx context.Context, query types.CratesQuery) (types.CratesPage, error) {
	return get[types.CratesPage](ctx, c, "crates", query.Values())
}

// User retrieves a user by username.
func (c *Client) User(ctx context.Context, username string) (types.User, error) {
	res, err := get[types.UserResponse](ctx, c, "users/"+url.PathEscape(username), nil)
	if err != nil {
		return types.User{}, err
	}
	return res.User, nil
}

// fullVersion enriches one version with its authors and dependencies.
func (c *Client) fullVersion(ctx context.Context, v types.Version) (types.FullVersion, error) {
	var (
		authors types.Authors
		deps    []types.Dependency
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		authors, err = c.CrateAuthors(gctx, v.CrateName, v.Num)
		return err
	})
	g.Go(func() error {
		var err error
		deps, err = c.CrateDependencies(gctx, v.CrateName, v.Num)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.FullVersion{}, err
	}

	return types.FullVersion{
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
		DLPath:     v.DLPath,
		Downloads:  v.Downloads,
		Features:   v.Features,
		ID:         v.ID,
		Num:        v.Num,
		Yanked:     v.Yanked,
		License:    v.License,
		ReadmePath: v.ReadmePath,
		Links:      v.Links,

		AuthorNames:  authors.Names,
		Dependencies: deps,
	}, nil
}

// FullCrate retrieves all available information for a crate, including
// download stats, owners, and reverse dependencies.
//
// When allVersions is false only the latest version is enriched; otherwise
// every version is, at two extra requests per version. The requests fan out
// structurally but remain serialized by the rate limiter.
func (c *Client) FullCrate(ctx context.Context, name string, allVersions bool) (*types.FullCrate, error) {
	resp, err := c.GetCrate(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(resp.Versions) == 0 {
		return nil, fmt.Errorf("crate %s has no published versions", name)
	}

	var versions []types.FullVersion
	if !allVersions {
		v, err := c.fullVersion(ctx, resp.Versions[0])
		if err != nil {
			return nil, err
		}
		versions = []types.FullVersion{v}
	} else {
		versions = make([]types.FullVersion, len(resp.Versions))
		g, gctx := errgroup.WithContext(ctx)
		for i, v := range resp.Versions {
			g.Go(func() error {
				fv, err := c.fullVersion(gctx, v)
				if err != nil {
					return err
				}
				versions[i] = fv
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var (
		downloads types.CrateDownloads
		owners    []types.User
		rdeps     types.ReverseDependencies
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		downloads, err = c.CrateDownloads(gctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		owners, err = c.CrateOwners(gctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		rdeps, err = c.ReverseDependencies(gctx, name)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := resp.Crate
	return &types.FullCrate{
		ID:               data.ID,
		Name:             data.Name,
		Description:      data.Description,
		License:          resp.Versions[0].License,
		Documentation:    data.Documentation,
		Homepage:         data.Homepage,
		Repository:       data.Repository,
		TotalDownloads:   data.Downloads,
		MaxVersion:       data.MaxVersion,
		MaxStableVersion: data.MaxStableVersion,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,

		Categories:          resp.Categories,
		Keywords:            resp.Keywords,
		Downloads:           downloads,
		Owners:              owners,
		ReverseDependencies: rdeps,

		Versions: versions,
	}, nil
}
