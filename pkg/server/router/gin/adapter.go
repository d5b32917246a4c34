// Package gin implements router.Router on gin-gonic.
package gin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-contrib/cors"
	ginpkg "github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gin-gonic/gin/render"

	"github.com/tutorhub/tutorhub/pkg/server/router"
)

// Numbers bound into interface values stay json.Number so integer filters
// above 2^53 keep every digit.
func init() {
	binding.EnableDecoderUseNumber = true
}

// ErrEmptyBody is returned by Bind when the request carries no body.
var ErrEmptyBody = errors.New("request body is empty")

// Option configures the gin engine.
type Option func(*ginpkg.Engine)

// WithCORS installs gin-contrib/cors ahead of every route, including preflight requests.
func WithCORS(cfg cors.Config) Option {
	return func(e *ginpkg.Engine) {
		e.Use(cors.New(cfg))
	}
}

// GinRouter implements router.Router using gin-gonic/gin.
type GinRouter struct {
	engine            *ginpkg.Engine
	group             *ginpkg.RouterGroup
	middleware        []router.MiddlewareFunc
	mu                *sync.RWMutex
	optionsRegistered *map[string]struct{}
}

// NewRouter creates a GinRouter in release mode.
func NewRouter(opts ...Option) *GinRouter {
	ginpkg.SetMode(ginpkg.ReleaseMode)
	engine := ginpkg.New()
	engine.HandleMethodNotAllowed = true
	for _, opt := range opts {
		opt(engine)
	}
	optionsRegistered := make(map[string]struct{})
	return &GinRouter{
		engine:            engine,
		mu:                &sync.RWMutex{},
		optionsRegistered: &optionsRegistered,
	}
}

func (r *GinRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodGet, path, handler, middleware)
}

func (r *GinRouter) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPost, path, handler, middleware)
}

func (r *GinRouter) PUT(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPut, path, handler, middleware)
}

func (r *GinRouter) DELETE(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodDelete, path, handler, middleware)
}

func (r *GinRouter) PATCH(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPatch, path, handler, middleware)
}

// Group creates a route group. The group inherits the middleware registered so far.
func (r *GinRouter) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	r.mu.RLock()
	combined := append([]router.MiddlewareFunc{}, r.middleware...)
	r.mu.RUnlock()
	combined = append(combined, middleware...)

	var group *ginpkg.RouterGroup
	if r.group == nil {
		group = r.engine.Group(prefix)
	} else {
		group = r.group.Group(prefix)
	}

	return &GinRouter{
		engine:            r.engine,
		group:             group,
		middleware:        combined,
		mu:                r.mu,
		optionsRegistered: r.optionsRegistered,
	}
}

// Use applies middleware to routes registered after the call.
func (r *GinRouter) Use(middleware ...router.MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// ServeHTTP implements http.Handler.
func (r *GinRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func (r *GinRouter) handle(method, path string, h router.HandlerFunc, routeMiddleware []router.MiddlewareFunc) {
	r.mu.RLock()
	global := append([]router.MiddlewareFunc{}, r.middleware...)
	r.mu.RUnlock()

	handler := h
	for i := len(routeMiddleware) - 1; i >= 0; i-- {
		handler = routeMiddleware[i](handler)
	}
	for i := len(global) - 1; i >= 0; i-- {
		handler = global[i](handler)
	}

	ginHandler := func(gc *ginpkg.Context) {
		ctx := newContext(gc)
		if err := handler(ctx); err != nil && !ctx.Response().Written() {
			gc.AbortWithStatus(http.StatusInternalServerError)
		}
	}

	if r.group != nil {
		r.group.Handle(method, path, ginHandler)
	} else {
		r.engine.Handle(method, path, ginHandler)
	}
	r.ensureOptionsRoute(path)
}

func (r *GinRouter) ensureOptionsRoute(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := path
	if r.group != nil {
		key = r.group.BasePath() + path
	}
	if _, exists := (*r.optionsRegistered)[key]; exists {
		return
	}
	(*r.optionsRegistered)[key] = struct{}{}

	optionsHandler := func(gc *ginpkg.Context) {
		if !gc.Writer.Written() {
			gc.Status(http.StatusNoContent)
		}
	}

	if r.group != nil {
		r.group.Handle(http.MethodOptions, path, optionsHandler)
		return
	}
	r.engine.Handle(http.MethodOptions, path, optionsHandler)
}

type ginContext struct {
	ctx      *ginpkg.Context
	response router.ResponseWriter
}

func newContext(c *ginpkg.Context) *ginContext {
	return &ginContext{ctx: c, response: &ginResponseWriter{ResponseWriter: c.Writer}}
}

func (c *ginContext) Request() *http.Request {
	return c.ctx.Request
}

func (c *ginContext) SetRequest(r *http.Request) {
	c.ctx.Request = r
}

func (c *ginContext) Response() router.ResponseWriter {
	return c.response
}

func (c *ginContext) SetResponse(w router.ResponseWriter) {
	c.response = w
}

func (c *ginContext) Param(name string) string {
	return c.ctx.Param(name)
}

func (c *ginContext) Query(name string) string {
	return c.ctx.Query(name)
}

func (c *ginContext) FullPath() string {
	return c.ctx.FullPath()
}

// Bind decodes a JSON body with gin's JSON binding. Struct validation is left
// to the caller.
func (c *ginContext) Bind(v any) error {
	if c.ctx.Request.Body == nil || c.ctx.Request.Body == http.NoBody || c.ctx.Request.ContentLength == 0 {
		return ErrEmptyBody
	}
	contentType := c.ctx.GetHeader("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("unsupported content type: %s", contentType)
	}
	return c.ctx.ShouldBindJSON(v)
}

// JSON writes v through the wrapped response writer so Status and Written stay accurate.
func (c *ginContext) JSON(code int, v any) error {
	c.response.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.response.WriteHeader(code)
	if code == http.StatusNoContent || v == nil {
		return nil
	}
	return render.JSON{Data: v}.Render(c.response)
}

func (c *ginContext) String(code int, s string) error {
	c.response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.response.WriteHeader(code)
	_, err := c.response.Write([]byte(s))
	return err
}

func (c *ginContext) Get(key string) any {
	v, ok := c.ctx.Get(key)
	if !ok {
		return nil
	}
	return v
}

func (c *ginContext) Set(key string, value any) {
	c.ctx.Set(key, value)
}

type ginResponseWriter struct {
	ginpkg.ResponseWriter
	mu      sync.RWMutex
	status  int
	written bool
}

func (w *ginResponseWriter) Status() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *ginResponseWriter) Written() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.written
}

func (w *ginResponseWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written {
		return
	}
	w.status = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *ginResponseWriter) Write(b []byte) (int, error) {
	if !w.Written() {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *ginResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
