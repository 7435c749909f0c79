package router

import (
	"fmt"
	"strings"
)

// Method is an HTTP method a route can be registered for.
type Method int

// Supported methods.
const (
	ACL Method = iota
	BIND
	CHECKOUT
	CONNECT
	COPY
	DELETE
	GET
	HEAD
	LINK
	LOCK
	MSEARCH
	MERGE
	MKACTIVITY
	MKCALENDAR
	MKCOL
	MOVE
	NOTIFY
	OPTIONS
	PATCH
	POST
	PROPFIND
	PROPPATCH
	PURGE
	PUT
	REBIND
	REPORT
	SEARCH
	SOURCE
	SUBSCRIBE
	TRACE
	UNBIND
	UNLINK
	UNLOCK
	UNSUBSCRIBE

	methodCount
)

var methodNames = [methodCount]string{
	ACL:         "ACL",
	BIND:        "BIND",
	CHECKOUT:    "CHECKOUT",
	CONNECT:     "CONNECT",
	COPY:        "COPY",
	DELETE:      "DELETE",
	GET:         "GET",
	HEAD:        "HEAD",
	LINK:        "LINK",
	LOCK:        "LOCK",
	MSEARCH:     "M-SEARCH",
	MERGE:       "MERGE",
	MKACTIVITY:  "MKACTIVITY",
	MKCALENDAR:  "MKCALENDAR",
	MKCOL:       "MKCOL",
	MOVE:        "MOVE",
	NOTIFY:      "NOTIFY",
	OPTIONS:     "OPTIONS",
	PATCH:       "PATCH",
	POST:        "POST",
	PROPFIND:    "PROPFIND",
	PROPPATCH:   "PROPPATCH",
	PURGE:       "PURGE",
	PUT:         "PUT",
	REBIND:      "REBIND",
	REPORT:      "REPORT",
	SEARCH:      "SEARCH",
	SOURCE:      "SOURCE",
	SUBSCRIBE:   "SUBSCRIBE",
	TRACE:       "TRACE",
	UNBIND:      "UNBIND",
	UNLINK:      "UNLINK",
	UNLOCK:      "UNLOCK",
	UNSUBSCRIBE: "UNSUBSCRIBE",
}

// allMethods is the set registered by Router.All and Router.Redirect.
var allMethods = []Method{HEAD, OPTIONS, GET, PUT, PATCH, POST, DELETE}

// Methods returns every supported method in declaration order.
func Methods() []Method {
	out := make([]Method, methodCount)
	for i := range out {
		out[i] = Method(i)
	}
	return out
}

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	return m >= 0 && m < methodCount
}

// String returns the request-line form of the method, e.g. "GET" or "M-SEARCH".
func (m Method) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethod looks up a method by name, ignoring case.
func ParseMethod(s string) (Method, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range methodNames {
		if name == upper {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("router: unknown HTTP method %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("router: unknown HTTP method %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
