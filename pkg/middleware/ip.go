package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType `yaml:"source"`

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string `yaml:"custom_header"`

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For.
	// If false, RemoteAddr is used regardless of Source.
	TrustProxy bool `yaml:"trust_proxy"`
}

// DefaultIPConfig returns the default IP configuration: RemoteAddr only.
// Proxy headers are client controlled and must be opted into.
func DefaultIPConfig() *IPConfig {
	return &IPConfig{Source: IPSourceRemoteAddr}
}

// contextKey is a type for context keys
type contextKey string

// ClientIPKey is the key used to store the client IP in the request context
const ClientIPKey contextKey = "client_ip"

// ClientIP extracts the client IP from the request context
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware creates a middleware that extracts the client IP from the request
// and adds it to the request context
func ClientIPMiddleware(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPKey, extractClientIP(r, config))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractClientIP extracts the client IP from the request based on the configuration
func extractClientIP(r *http.Request, config *IPConfig) string {
	var ip string
	if config.TrustProxy {
		switch config.Source {
		case IPSourceXForwardedFor:
			ip = extractIPFromXForwardedFor(r)
		case IPSourceXRealIP:
			ip = r.Header.Get("X-Real-IP")
		case IPSourceCustomHeader:
			ip = r.Header.Get(config.CustomHeader)
		}
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return cleanIP(strings.TrimSpace(ip))
}

// extractIPFromXForwardedFor returns the leftmost (original client) entry of X-Forwarded-For.
func extractIPFromXForwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP removes the port from an address if present. Bracketed IPv6 addresses
// keep their brackets; bare IPv6 addresses are returned as is.
func cleanIP(ip string) string {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return ip
}
