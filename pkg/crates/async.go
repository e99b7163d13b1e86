package crates

import (
	"context"

	"github.com/pkgwatch/crates-io-client/pkg/types"
)

// Result carries the outcome of an asynchronous operation. Exactly one of
// Value and Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// AsyncClient is the non-blocking facade over a Client. Each method starts
// the work in a goroutine and returns a channel that delivers exactly one
// Result and is then closed, so callers can fire off several operations and
// select over the outcomes.
//
// Both facades share the client's rate limiter: requests started
// concurrently are admitted one at a time, in submission order.
type AsyncClient struct {
	client *Client
}

// Async returns the non-blocking facade of the client.
func (c *Client) Async() *AsyncClient {
	return &AsyncClient{client: c}
}

// dispatch runs fn in a goroutine and delivers its outcome on the returned
// channel. The channel is buffered so the goroutine never blocks on a
// consumer that lost interest.
func dispatch[T any](fn func() (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		v, err := fn()
		out <- Result[T]{Value: v, Err: err}
	}()
	return out
}

// Summary retrieves registry-wide information.
func (a *AsyncClient) Summary(ctx context.Context) <-chan Result[types.Summary] {
	return dispatch(func() (types.Summary, error) {
		return a.client.Summary(ctx)
	})
}

// GetCrate retrieves information about a crate.
func (a *AsyncClient) GetCrate(ctx context.Context, name string) <-chan Result[types.CrateResponse] {
	return dispatch(func() (types.CrateResponse, error) {
		return a.client.GetCrate(ctx, name)
	})
}

// CrateDownloads retrieves download stats for a crate.
func (a *AsyncClient) CrateDownloads(ctx context.Context, name string) <-chan Result[types.CrateDownloads] {
	return dispatch(func() (types.CrateDownloads, error) {
		return a.client.CrateDownloads(ctx, name)
	})
}

// CrateOwners retrieves the owners of a crate.
func (a *AsyncClient) CrateOwners(ctx context.Context, name string) <-chan Result[[]types.User] {
	return dispatch(func() ([]types.User, error) {
		return a.client.CrateOwners(ctx, name)
	})
}

// CrateAuthors retrieves the authors of a crate version.
func (a *AsyncClient) CrateAuthors(ctx context.Context, name, version string) <-chan Result[types.Authors] {
	return dispatch(func() (types.Authors, error) {
		return a.client.CrateAuthors(ctx, name, version)
	})
}

// CrateDependencies retrieves the dependencies of a crate version.
func (a *AsyncClient) CrateDependencies(ctx context.Context, name, version string) <-chan Result[[]types.Dependency] {
	return dispatch(func() ([]types.Dependency, error) {
		return a.client.CrateDependencies(ctx, name, version)
	})
}

// ReverseDependencies loads all reverse dependencies of a crate.
func (a *AsyncClient) ReverseDependencies(ctx context.Context, name string) <-chan Result[types.ReverseDependencies] {
	return dispatch(func() (types.ReverseDependencies, error) {
		return a.client.ReverseDependencies(ctx, name)
	})
}

// Crates retrieves one page of crates matching the query.
func (a *AsyncClient) Crates(ctx context.Context, query types.CratesQuery) <-chan Result[types.CratesPage] {
	return dispatch(func() (types.CratesPage, error) {
		return a.client.Crates(ctx, query)
	})
}

// User retrieves a user by username.
func (a *AsyncClient) User(ctx context.Context, username string) <-chan Result[types.User] {
	return dispatch(func() (types.User, error) {
		return a.client.User(ctx, username)
	})
}

// FullCrate retrieves all available information for a crate.
func (a *AsyncClient) FullCrate(ctx context.Context, name string, allVersions bool) <-chan Result[*types.FullCrate] {
	return dispatch(func() (*types.FullCrate, error) {
		return a.client.FullCrate(ctx, name, allVersions)
	})
}
