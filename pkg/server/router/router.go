// Package router defines the handler and middleware contract used by the HTTP
// layer, independent of the engine that dispatches requests.
package router

import "net/http"

// Router registers routes and middleware.
type Router interface {
	GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	POST(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PUT(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	DELETE(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PATCH(path string, handler HandlerFunc, middleware ...MiddlewareFunc)

	// Group creates a route group with a common prefix and middleware.
	Group(prefix string, middleware ...MiddlewareFunc) Router

	// Use applies middleware to every route registered afterwards.
	Use(middleware ...MiddlewareFunc)

	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// HandlerFunc handles one request. A returned error that was not written to the
// response becomes a 500.
type HandlerFunc func(Context) error

// MiddlewareFunc wraps a HandlerFunc.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// Context gives handlers access to the request and response.
type Context interface {
	Request() *http.Request
	SetRequest(r *http.Request)

	Response() ResponseWriter
	SetResponse(w ResponseWriter)

	// Param returns a path parameter, e.g. id in /tutors/:id/lock.
	Param(name string) string
	Query(name string) string

	// Bind decodes a JSON request body into v.
	Bind(v any) error
	JSON(code int, v any) error
	String(code int, s string) error

	// FullPath is the matched route template, empty when no route matched.
	FullPath() string

	Get(key string) any
	Set(key string, value any)
}

// ResponseWriter tracks the status written to the client.
type ResponseWriter interface {
	http.ResponseWriter

	// Status returns the written status, or 200 when nothing was written yet.
	Status() int
	Written() bool
}
