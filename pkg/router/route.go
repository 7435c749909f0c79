package router

import (
	"strings"

	"github.com/Suhaibinator/VRouter/pkg/common"
	"github.com/Suhaibinator/VRouter/pkg/validation"
)

// RouteSpec is the canonical description of a route.
type RouteSpec struct {
	Name    string
	Methods []Method
	Path    string
	// Pre runs before validation, after ingestion.
	Pre common.Handlers
	// Handler runs after successful validation. It is required.
	Handler  common.Handlers
	Validate *validation.Spec
	Opts     RouteOptions
}

// PathForm is the short call form: a path, a handler and an optional validation spec.
type PathForm struct {
	Path     string
	Handler  common.Handlers
	Validate *validation.Spec
}

// RouteArgs is either a PathForm or a RouteSpec.
type RouteArgs interface {
	routeSpec() (RouteSpec, error)
}

// RouteFunc registers a route for one method, or for a fixed set of methods.
type RouteFunc func(args RouteArgs) error

// Path builds a PathForm. At most one validation spec is used.
func Path(path string, handler common.Handlers, validate ...*validation.Spec) PathForm {
	p := PathForm{Path: path, Handler: handler}
	if len(validate) > 0 {
		p.Validate = validate[0]
	}
	return p
}

func (p PathForm) routeSpec() (RouteSpec, error) {
	if p.Path == "" || p.Handler == nil {
		return RouteSpec{}, configError(p.Path, ErrInvalidRouteArgs)
	}
	return RouteSpec{Path: p.Path, Handler: p.Handler, Validate: p.Validate}, nil
}

func (s RouteSpec) routeSpec() (RouteSpec, error) {
	return s, nil
}

// UseSpec is router-level middleware. With a Path it only applies to matched
// routes whose path equals Path or lies below it.
type UseSpec struct {
	Path     string
	Pre      common.Handlers
	Handler  common.Handlers
	Validate *validation.Spec
}

// RouteEntry is an installed route.
type RouteEntry struct {
	Name       string
	Path       string
	Methods    []Method
	Pre        []Middleware
	Handlers   []Middleware
	Validation *validation.Spec
	Options    RouteOptions

	params []string
}

// Params returns the parameter names of the route path in order.
func (e *RouteEntry) Params() []string {
	return append([]string(nil), e.params...)
}

// HasMethod reports whether the route is registered for m.
func (e *RouteEntry) HasMethod(m Method) bool {
	return containsMethod(e.Methods, m)
}

// matches reports whether the route path matches a request path.
// ":name" matches one non-empty segment and "*name" the rest of the path.
func (e *RouteEntry) matches(path string) bool {
	pattern := splitPath(e.Path)
	segs := splitPath(path)
	for i, p := range pattern {
		if strings.HasPrefix(p, "*") {
			return true
		}
		if i >= len(segs) {
			return false
		}
		if strings.HasPrefix(p, ":") {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if p != segs[i] {
			return false
		}
	}
	return len(pattern) == len(segs)
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// paramNames returns the ":name" and "*name" segments of a route path.
func paramNames(path string) []string {
	var names []string
	for _, seg := range splitPath(path) {
		if strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			names = append(names, seg[1:])
		}
	}
	return names
}

// underPrefix reports whether path equals prefix or is below it.
func underPrefix(path, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func cleanPrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}
