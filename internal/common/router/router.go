// Package router is a small method+path router on top of net/http.
// Paths may contain {name} segments, which match exactly one path segment and are
// available to handlers via Param. Every route carries a name and a one-line
// description so that the service can list its own endpoints.
package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"

	"github.com/sogno-platform/dpsim-api/internal/common/requestid"
	"github.com/sogno-platform/dpsim-api/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type contextKey int

const paramsKey contextKey = 0

type route struct {
	api.Route
	segments []string
	handler  http.HandlerFunc
}

type Router struct {
	routes           []*route
	documentationUrl string
}

// New returns an empty router. If documentationUrl is set, every route links to
// documentationUrl#<route name>.
func New(documentationUrl string) *Router {
	return &Router{documentationUrl: strings.TrimSuffix(documentationUrl, "/")}
}

// Handle registers a handler. Routes are matched in registration order.
func (r *Router) Handle(method, path, name, doc string, handler http.HandlerFunc) {
	r.routes = append(r.routes, &route{
		Route: api.Route{
			Name:   name,
			Method: method,
			Path:   path,
			Doc:    doc,
		},
		segments: splitPath(path),
		handler:  handler,
	})
}

func (r *Router) GET(path, name, doc string, handler http.HandlerFunc) {
	r.Handle(http.MethodGet, path, name, doc, handler)
}

func (r *Router) POST(path, name, doc string, handler http.HandlerFunc) {
	r.Handle(http.MethodPost, path, name, doc, handler)
}

// Routes lists every registered route in registration order.
func (r *Router) Routes() []api.Route {
	routes := make([]api.Route, len(r.routes))
	for i, rt := range r.routes {
		routes[i] = rt.Route
		if r.documentationUrl != "" {
			routes[i].Link = r.documentationUrl + "#" + rt.Name
		}
	}
	return routes
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	requestId := requestid.FromRequestOrNew(req)
	lrw.Header().Set(requestid.HeaderKey, requestId)
	ctx := requestid.AddToContext(req.Context(), requestId)

	pathExists := false
	var matched *route
	var params map[string]string
	segments := splitPath(req.URL.Path)
	for _, rt := range r.routes {
		p, ok := match(rt.segments, segments)
		if !ok {
			continue
		}
		pathExists = true
		if rt.Method == req.Method {
			matched = rt
			params = p
			break
		}
	}

	switch {
	case matched != nil:
		matched.handler(lrw, req.WithContext(context.WithValue(ctx, paramsKey, params)))
	case pathExists:
		writeErrorResponse(lrw, http.StatusMethodNotAllowed, req.Method+" is not supported on "+req.URL.Path)
	default:
		writeErrorResponse(lrw, http.StatusNotFound, "no endpoint at "+req.URL.Path+"; see /api")
	}

	log.WithFields(log.Fields{
		"requestId": requestId,
		"method":    req.Method,
		"path":      req.URL.Path,
		"status":    lrw.statusCode,
		"duration":  time.Since(start),
	}).Info("Handled request")
}

func writeErrorResponse(w http.ResponseWriter, status int, detail string) {
	data, err := json.Marshal(&api.ErrorResponse{Error: http.StatusText(status), Details: []string{detail}})
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// Param returns the value of a {name} path segment, or "" if the route has no such segment.
func Param(req *http.Request, name string) string {
	params, _ := req.Context().Value(paramsKey).(map[string]string)
	return params[name]
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "/")
}

func match(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	var params map[string]string
	for i, p := range pattern {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			if segments[i] == "" {
				return nil, false
			}
			if params == nil {
				params = map[string]string{}
			}
			params[p[1:len(p)-1]] = segments[i]
			continue
		}
		if p != segments[i] {
			return nil, false
		}
	}
	return params, true
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
