// Package common provides shared types and utilities used across the VRouter framework.
package common

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler.
// It allows for pre-processing and post-processing of HTTP requests.
// Middleware can be chained together to create a pipeline of request processing.
type Middleware func(http.Handler) http.Handler

// HandlerFunc is a terminal handler. Used as middleware it never calls the
// next handler, so it ends the chain it is placed in.
type HandlerFunc func(http.ResponseWriter, *http.Request)

// Handlers is a middleware, a terminal handler, or an arbitrarily nested Stack of them.
// Route pre-handlers and handlers are declared as Handlers and flattened at registration.
type Handlers interface {
	appendTo(dst []Middleware) []Middleware
}

// Stack is an ordered, possibly nested, sequence of Handlers.
type Stack []Handlers

func (m Middleware) appendTo(dst []Middleware) []Middleware {
	if m == nil {
		return dst
	}
	return append(dst, m)
}

func (f HandlerFunc) appendTo(dst []Middleware) []Middleware {
	if f == nil {
		return dst
	}
	return append(dst, f.Middleware())
}

func (s Stack) appendTo(dst []Middleware) []Middleware {
	for _, h := range s {
		if h == nil {
			continue
		}
		dst = h.appendTo(dst)
	}
	return dst
}

// Middleware adapts the handler into a Middleware that ignores next.
func (f HandlerFunc) Middleware() Middleware {
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(f)
	}
}
