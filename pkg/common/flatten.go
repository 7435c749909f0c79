package common

// Flatten normalizes h into a single flat sequence of middleware.
// Nested stacks are expanded depth-first, left to right, and nil entries
// contribute nothing. The input is never modified and the result is always
// a fresh, non-nil slice.
func Flatten(h Handlers) []Middleware {
	if h == nil {
		return []Middleware{}
	}
	return h.appendTo([]Middleware{})
}
