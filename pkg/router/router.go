package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Suhaibinator/VRouter/pkg/common"
	"github.com/Suhaibinator/VRouter/pkg/middleware"
	"github.com/Suhaibinator/VRouter/pkg/validation"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Router is the main router struct that implements http.Handler.
// Routes must be registered before the router starts serving; after that its
// state is only read.
type Router struct {
	opts    Options
	router  *httprouter.Router
	logger  *zap.Logger
	limiter middleware.RateLimiter
	methods [methodCount]RouteFunc

	prefix string
	routes []*RouteEntry
	named  map[string]*RouteEntry
	uses   []useLayer
	params map[string][]ParamHandler

	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// ParamHandler runs for every route that declares the named parameter, after
// router-level Use middleware and before the route's pre-handlers. It must call
// next to continue the chain.
type ParamHandler func(value string, w http.ResponseWriter, r *http.Request, next http.Handler)

type useLayer struct {
	path  string
	chain common.MiddlewareChain
}

// NewRouter creates a Router. Unset options are resolved here once.
func NewRouter(opts Options) *Router {
	opts = opts.withDefaults()

	hr := httprouter.New()
	hr.RedirectTrailingSlash = !opts.Router.Strict
	hr.RedirectFixedPath = !opts.Router.Sensitive
	hr.HandleMethodNotAllowed = !opts.Router.DisableMethodNotAllowed
	hr.HandleOPTIONS = !opts.Router.DisableAutoOptions
	hr.NotFound = opts.Router.NotFound
	hr.MethodNotAllowed = opts.Router.MethodNotAllowed
	if opts.CORS != nil {
		hr.GlobalOPTIONS = middleware.CORS(*opts.CORS)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}

	r := &Router{
		opts:    opts,
		router:  hr,
		logger:  opts.Logger,
		limiter: middleware.NewUberRateLimiter(),
		prefix:  opts.Router.Prefix,
		named:   make(map[string]*RouteEntry),
		params:  make(map[string][]ParamHandler),
	}
	for i := range r.methods {
		m := Method(i)
		r.methods[i] = func(args RouteArgs) error {
			return r.register(args, []Method{m})
		}
	}
	return r
}

// Method returns the registration function for m. The method always replaces
// any Methods set in a RouteSpec argument.
func (r *Router) Method(m Method) RouteFunc {
	if !m.Valid() {
		return func(RouteArgs) error {
			return configError("", fmt.Errorf("%w: unknown method %d", ErrInvalidRouteArgs, int(m)))
		}
	}
	return r.methods[m]
}

// Get registers a GET route.
func (r *Router) Get(args RouteArgs) error { return r.methods[GET](args) }

// Post registers a POST route.
func (r *Router) Post(args RouteArgs) error { return r.methods[POST](args) }

// Put registers a PUT route.
func (r *Router) Put(args RouteArgs) error { return r.methods[PUT](args) }

// Patch registers a PATCH route.
func (r *Router) Patch(args RouteArgs) error { return r.methods[PATCH](args) }

// Delete registers a DELETE route.
func (r *Router) Delete(args RouteArgs) error { return r.methods[DELETE](args) }

// Head registers a HEAD route.
func (r *Router) Head(args RouteArgs) error { return r.methods[HEAD](args) }

// Options registers an OPTIONS route.
func (r *Router) Options(args RouteArgs) error { return r.methods[OPTIONS](args) }

// All registers a route for HEAD, OPTIONS, GET, PUT, PATCH, POST and DELETE.
func (r *Router) All(args RouteArgs) error { return r.register(args, allMethods) }

func (r *Router) register(args RouteArgs, methods []Method) error {
	if args == nil {
		return configError("", ErrInvalidRouteArgs)
	}
	spec, err := args.routeSpec()
	if err != nil {
		return err
	}
	spec.Methods = methods
	return r.Register(spec)
}

// Register installs a route for every method in spec.Methods. The compiled
// chain is shared by all of them: ingestion, Use middleware, param handlers,
// Pre, the validation stage, then Handler.
func (r *Router) Register(spec RouteSpec) error {
	if spec.Path == "" || !strings.HasPrefix(spec.Path, "/") {
		if len(spec.Methods) == 0 {
			return configError(spec.Path, ErrMethodMissing)
		}
		return configError(spec.Path, ErrInvalidPath)
	}
	return r.add(spec, r.join(spec.Path))
}

func (r *Router) join(path string) string {
	if r.prefix == "" {
		return path
	}
	if path == "/" {
		return r.prefix
	}
	return r.prefix + path
}

func (r *Router) add(spec RouteSpec, path string) error {
	if len(spec.Methods) == 0 {
		return configError(path, ErrMethodMissing)
	}
	methods := make([]Method, 0, len(spec.Methods))
	for _, m := range spec.Methods {
		if !m.Valid() {
			return configError(path, fmt.Errorf("%w: unknown method %d", ErrInvalidRouteArgs, int(m)))
		}
		if !containsMethod(methods, m) {
			methods = append(methods, m)
		}
	}

	handlers := common.Flatten(spec.Handler)
	if len(handlers) == 0 {
		return configError(path, ErrHandlerMissing)
	}

	name := spec.Name
	if spec.Opts.Name != "" {
		name = spec.Opts.Name
	}
	entry := &RouteEntry{
		Name:       name,
		Path:       path,
		Methods:    methods,
		Pre:        common.Flatten(spec.Pre),
		Handlers:   handlers,
		Validation: spec.Validate,
		Options:    spec.Opts,
		params:     paramNames(path),
	}

	if err := r.install(entry, r.compile(entry)); err != nil {
		return err
	}

	r.routes = append(r.routes, entry)
	if name != "" {
		if _, exists := r.named[name]; !exists {
			r.named[name] = entry
		}
	}

	methodNames := make([]string, len(methods))
	for i, m := range methods {
		methodNames[i] = m.String()
	}
	r.logger.Debug("Route registered",
		zap.String("path", path),
		zap.Strings("methods", methodNames),
		zap.String("name", name),
	)
	return nil
}

// install hands the compiled handler to httprouter, converting its panics on
// malformed or conflicting paths into a ConfigError.
func (r *Router) install(entry *RouteEntry, h http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = configError(entry.Path, fmt.Errorf("%w: %v", ErrInvalidPath, rec))
		}
	}()
	for _, m := range entry.Methods {
		r.router.Handler(m.String(), entry.Path, h)
	}
	return nil
}

// compile builds the handler for a route. The outer wrappers are fixed at
// registration; Use layers and param handlers are applied per request so that
// they may be added in any order during setup.
func (r *Router) compile(entry *RouteEntry) http.Handler {
	label := entry.Name
	if label == "" {
		label = entry.Path
	}

	stage := validation.New(entry.Validation, r.validationConfig(label))
	inner := common.NewMiddlewareChain(entry.Pre...).
		Append(stage).
		Append(entry.Handlers...).
		Then(nil)

	dispatch := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h := r.withParams(entry, inner)
		h = r.withUses(req.URL.Path, h)
		h.ServeHTTP(w, req)
	})

	chain := common.NewMiddlewareChain(
		r.trackRequests,
		middleware.Recovery(r.logger),
		middleware.ClientIPMiddleware(r.opts.IPConfig),
	)
	if r.opts.CORS != nil {
		chain = chain.Append(middleware.CORS(*r.opts.CORS))
	}
	if r.opts.EnableTraceID {
		chain = chain.Append(middleware.TraceMiddleware())
	}
	if r.opts.LogRequests {
		chain = chain.Append(middleware.Logging(r.logger, r.opts.SlowRequestThreshold))
	}
	if r.opts.Metrics != nil {
		chain = chain.Append(r.opts.Metrics.Middleware(label))
	}
	chain = chain.Append(r.opts.Middlewares...)

	if size := r.opts.effectiveMaxBodySize(entry.Options.MaxBodySize); size > 0 {
		chain = chain.Append(middleware.MaxBodySize(size))
	}
	if timeout := r.opts.effectiveTimeout(entry.Options.Timeout); timeout > 0 {
		chain = chain.Append(middleware.Timeout(timeout))
	}
	if rl := r.opts.effectiveRateLimit(entry.Options.RateLimit); rl != nil {
		chain = chain.Append(middleware.RateLimit(rl, r.limiter, r.logger))
	}

	chain = chain.Append(attachFacets, middleware.BodyParser(r.opts.BodyParser, r.reportIngestion(label), r.logger))
	if r.opts.EnableMultipart {
		chain = chain.Append(middleware.Multipart(r.opts.Multipart, r.reportIngestion(label), r.logger))
	}
	return chain.Then(dispatch)
}

// attachFacets creates the request facets once path parameters are in the context.
func attachFacets(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		req, _ = validation.Attach(req)
		next.ServeHTTP(w, req)
	})
}

// trackRequests rejects requests once Shutdown was called and lets Shutdown
// wait for the ones in flight.
func (r *Router) trackRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.shutdownMu.RLock()
		if r.shutdown {
			r.shutdownMu.RUnlock()
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		r.wg.Add(1)
		r.shutdownMu.RUnlock()
		defer r.wg.Done()

		next.ServeHTTP(w, req)
	})
}

func (r *Router) withParams(entry *RouteEntry, h http.Handler) http.Handler {
	for i := len(entry.params) - 1; i >= 0; i-- {
		name := entry.params[i]
		fns := r.params[name]
		for j := len(fns) - 1; j >= 0; j-- {
			fn, next := fns[j], h
			h = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				fn(httprouter.ParamsFromContext(req.Context()).ByName(name), w, req, next)
			})
		}
	}
	return h
}

func (r *Router) withUses(path string, h http.Handler) http.Handler {
	for i := len(r.uses) - 1; i >= 0; i-- {
		if underPrefix(path, r.uses[i].path) {
			h = r.uses[i].chain.Then(h)
		}
	}
	return h
}

func (r *Router) validationConfig(label string) validation.Config {
	return validation.Config{
		ExposeRequestErrors:  r.opts.ExposeRequestErrors,
		ExposeResponseErrors: r.opts.ExposeResponseErrors,
		ContinueOnError:      r.opts.ContinueOnError,
		Multipart:            r.opts.EnableMultipart,
		Logger:               r.logger,
		Reporter:             r.reportValidation(label),
	}
}

// reportValidation logs validation failures, counts them per facet and hands
// rejected requests to Options.OnError.
func (r *Router) reportValidation(label string) validation.Reporter {
	return func(req *http.Request, status int, failures validation.Failures) {
		facets := failures.Facets()
		names := make([]string, len(facets))
		for i, f := range facets {
			names[i] = f.String()
		}

		fields := []zap.Field{
			zap.String("route", label),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", status),
			zap.Strings("facets", names),
			zap.Error(failures),
		}
		if traceID := middleware.GetTraceID(req); traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}

		switch {
		case status == 0:
			r.logger.Debug("Invalid request passed to handlers", fields...)
		case status >= http.StatusInternalServerError:
			r.logger.Error("Response validation failed", fields...)
		default:
			r.logger.Warn("Request validation failed", fields...)
		}

		if r.opts.Metrics != nil {
			for _, name := range names {
				r.opts.Metrics.ValidationFailure(label, name, status)
			}
		}
		if status != 0 {
			r.opts.OnError(req, failures)
		}
	}
}

func (r *Router) reportIngestion(label string) middleware.IngestionReporter {
	return func(req *http.Request, err *middleware.IngestionError) {
		if r.opts.Metrics != nil {
			r.opts.Metrics.IngestionFailure(label, err.Status)
		}
		r.opts.OnError(req, err)
	}
}

// Use adds router-level middleware. Pre and Handler run for every matched route
// under spec.Path, before the route's own param handlers and pre-handlers, with
// an optional validation stage between them. The current prefix applies to the path.
func (r *Router) Use(spec UseSpec) error {
	path := spec.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		return configError(path, ErrInvalidPath)
	}
	if path == "" {
		path = r.prefix
	} else {
		path = r.join(path)
	}

	pre := common.Flatten(spec.Pre)
	handlers := common.Flatten(spec.Handler)
	if len(pre) == 0 && len(handlers) == 0 && spec.Validate.IsZero() {
		return configError(path, ErrInvalidRouteArgs)
	}

	label := path
	if label == "" {
		label = "/"
	}
	chain := common.NewMiddlewareChain(pre...).
		Append(validation.New(spec.Validate, r.validationConfig(label))).
		Append(handlers...)
	r.uses = append(r.uses, useLayer{path: path, chain: chain})
	return nil
}

// Param registers fn for every route declaring the parameter name.
func (r *Router) Param(name string, fn ParamHandler) {
	r.params[name] = append(r.params[name], fn)
}

// Prefix sets the path prefix for routes and Use middleware registered afterwards.
func (r *Router) Prefix(prefix string) {
	r.prefix = cleanPrefix(prefix)
}

// Redirect registers source to answer with a redirect to destination on every
// method of All. Either may be a route name; code defaults to 301.
func (r *Router) Redirect(source, destination string, code int) error {
	if code == 0 {
		code = http.StatusMovedPermanently
	}
	if e, ok := r.named[destination]; ok {
		target, err := buildURL(e.Path, nil)
		if err != nil {
			return err
		}
		destination = target
	}

	spec := RouteSpec{
		Methods: allMethods,
		Path:    source,
		Handler: common.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, destination, code)
		}),
	}
	if e, ok := r.named[source]; ok {
		return r.add(spec, e.Path)
	}
	return r.Register(spec)
}

// Route returns the first route registered under name.
func (r *Router) Route(name string) (*RouteEntry, bool) {
	e, ok := r.named[name]
	return e, ok
}

// URL builds the path of a named route. Params are either values filling the
// route parameters in order, or a single map[string]string or map[string]any
// keyed by parameter name. A trailing url.Values is encoded as the query.
func (r *Router) URL(name string, params ...any) (string, error) {
	e, ok := r.named[name]
	if !ok {
		return "", configError(name, ErrUnknownRoute)
	}
	return buildURL(e.Path, params)
}

func buildURL(pattern string, params []any) (string, error) {
	var query url.Values
	if n := len(params); n > 0 {
		if q, ok := params[n-1].(url.Values); ok {
			query = q
			params = params[:n-1]
		}
	}

	var named map[string]string
	if len(params) == 1 {
		switch m := params[0].(type) {
		case map[string]string:
			named = m
		case map[string]any:
			named = make(map[string]string, len(m))
			for k, v := range m {
				named[k] = fmt.Sprint(v)
			}
		}
	}

	segs := splitPath(pattern)
	next := 0
	for i, seg := range segs {
		if !strings.HasPrefix(seg, ":") && !strings.HasPrefix(seg, "*") {
			continue
		}
		key := seg[1:]

		var value string
		var ok bool
		if named != nil {
			value, ok = named[key]
		} else if next < len(params) {
			value, ok = fmt.Sprint(params[next]), true
			next++
		}
		if !ok {
			return "", configError(pattern, fmt.Errorf("%w: %s", ErrMissingParam, key))
		}

		if seg[0] == '*' {
			parts := strings.Split(strings.TrimPrefix(value, "/"), "/")
			for j, p := range parts {
				parts[j] = url.PathEscape(p)
			}
			segs[i] = strings.Join(parts, "/")
		} else {
			segs[i] = url.PathEscape(value)
		}
	}

	out := "/" + strings.Join(segs, "/")
	if len(query) > 0 {
		out += "?" + query.Encode()
	}
	return out, nil
}

// Match returns the routes whose path matches path and that are registered for method.
func (r *Router) Match(path string, method Method) []*RouteEntry {
	var out []*RouteEntry
	for _, e := range r.routes {
		if e.HasMethod(method) && e.matches(path) {
			out = append(out, e)
		}
	}
	return out
}

// Routes returns the installed routes in registration order.
func (r *Router) Routes() []*RouteEntry {
	return append([]*RouteEntry(nil), r.routes...)
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Handler returns the router as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r
}

// Shutdown stops accepting requests and waits for the ones in flight to finish
// or for ctx to be done.
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteError logs err and answers with its status. An *HTTPError controls the
// status and message; anything else becomes a generic 500.
func (r *Router) WriteError(w http.ResponseWriter, req *http.Request, err error) {
	statusCode := http.StatusInternalServerError
	message := http.StatusText(statusCode)

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		statusCode = httpErr.StatusCode
		message = httpErr.Message
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", statusCode),
	}
	if traceID := middleware.GetTraceID(req); traceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
	}
	if statusCode >= http.StatusInternalServerError {
		r.logger.Error("Handler error", fields...)
	} else {
		r.logger.Warn("Handler error", fields...)
	}

	http.Error(w, message, statusCode)
}

// GetParams retrieves the httprouter.Params from the request context.
func GetParams(r *http.Request) httprouter.Params {
	return httprouter.ParamsFromContext(r.Context())
}

// GetParam retrieves a specific parameter from the request context.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}

func containsMethod(methods []Method, m Method) bool {
	for _, have := range methods {
		if have == m {
			return true
		}
	}
	return false
}
