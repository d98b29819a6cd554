// Package fetch retrieves raw dataset bytes for a source identifier.
//
// A source identifier is a plain file path or a URL. The scheme selects the
// transport: file://, http://, https://, browser+http://, browser+https://
// and s3://. Every transport failure is reported as *models.RetrievalError
// so callers can tell it apart from validation failures.
package fetch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bid-analytics/models"
)

// Fetcher retrieves the raw bytes behind a source identifier.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string) ([]byte, error)
}

// Router dispatches to a Fetcher by scheme. Identifiers without a scheme
// go to the file fetcher.
type Router struct {
	routes map[string]Fetcher
}

// NewRouter creates a Router that reads local files.
func NewRouter() *Router {
	r := &Router{routes: make(map[string]Fetcher)}
	r.Handle("file", FileFetcher{})
	return r
}

// Handle registers f for scheme, replacing any previous registration.
func (r *Router) Handle(scheme string, f Fetcher) {
	r.routes[strings.ToLower(scheme)] = f
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	scheme := Scheme(sourceID)
	f, ok := r.routes[scheme]
	if !ok {
		return nil, &models.RetrievalError{SourceID: sourceID, Err: fmt.Errorf("no fetcher for scheme %q", scheme)}
	}
	return f.Fetch(ctx, sourceID)
}

// Scheme returns the lower-cased scheme of sourceID, or "file" when it has none.
func Scheme(sourceID string) string {
	i := strings.Index(sourceID, "://")
	if i <= 0 {
		return "file"
	}
	return strings.ToLower(sourceID[:i])
}

// FileFetcher reads sources from the local filesystem.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (FileFetcher) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.RetrievalError{SourceID: sourceID, Err: err}
	}
	path := strings.TrimPrefix(sourceID, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.RetrievalError{SourceID: sourceID, Err: err}
	}
	return data, nil
}
