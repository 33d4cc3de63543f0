package requestid

import (
	"context"
	"net/http"

	"github.com/sogno-platform/dpsim-api/internal/common/util"
)

// Request IDs are embedded in HTTP headers using this key.
// This is the standard key used for request Ids. For example, opentelemetry uses the same one.
const HeaderKey = "X-Request-Id"

type contextKey struct{}

// FromContext returns the request Id stored in a context, if one is available.
// The second return value is true if the operation was successful.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// FromContextOrMissing returns the request Id stored in a context, or "missing" if there is none.
func FromContextOrMissing(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id
	}
	return "missing"
}

// AddToContext returns a new context derived from ctx that is annotated with an Id.
func AddToContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromRequestOrNew returns the id the caller sent in the request header, or a new one if it sent none.
func FromRequestOrNew(r *http.Request) string {
	if id := r.Header.Get(HeaderKey); id != "" {
		return id
	}
	return util.NewULID()
}
