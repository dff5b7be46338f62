package frakt

import "strings"

// Header is an ordered multi-map of HTTP header name to values. Lookups are
// case-insensitive on the name; multiple values for the same name are kept
// in insertion order, and insertion order across distinct names is also
// preserved (needed for redirect_headers replay of Set-Cookie sequences).
type Header struct {
	order  []string // canonical (lower-cased) names, in first-seen order
	values map[string][]string
}

// NewHeader returns an empty Header ready for use.
func NewHeader() *Header {
	return &Header{values: make(map[string][]string)}
}

func canonKey(name string) string { return strings.ToLower(name) }

// Add appends value to name's value list, preserving insertion order.
func (h *Header) Add(name, value string) {
	k := canonKey(name)
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	if _, ok := h.values[k]; !ok {
		h.order = append(h.order, k)
	}
	h.values[k] = append(h.values[k], value)
}

// Set replaces all existing values for name with a single value.
func (h *Header) Set(name, value string) {
	k := canonKey(name)
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	if _, ok := h.values[k]; !ok {
		h.order = append(h.order, k)
	}
	h.values[k] = []string{value}
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	vs := h.values[canonKey(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for name in insertion order. The returned
// slice must not be mutated by the caller.
func (h *Header) Values(name string) []string {
	return h.values[canonKey(name)]
}

// Has reports whether name has at least one value.
func (h *Header) Has(name string) bool {
	return len(h.values[canonKey(name)]) > 0
}

// Del removes all values for name.
func (h *Header) Del(name string) {
	k := canonKey(name)
	if _, ok := h.values[k]; !ok {
		return
	}
	delete(h.values, k)
	for i, n := range h.order {
		if n == k {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Names returns header names in first-insertion order (canonical lower-case
// form; callers that need display casing should title-case themselves).
func (h *Header) Names() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	if h == nil {
		return NewHeader()
	}
	c := &Header{
		order:  append([]string(nil), h.order...),
		values: make(map[string][]string, len(h.values)),
	}
	for k, v := range h.values {
		c.values[k] = append([]string(nil), v...)
	}
	return c
}

// Each calls fn once per (name, value) pair: names in first-seen order,
// and all values of one name, in insertion order, before the next name.
// name is passed in its canonical lower-case form.
func (h *Header) Each(fn func(name, value string)) {
	for _, k := range h.order {
		for _, v := range h.values[k] {
			fn(k, v)
		}
	}
}
