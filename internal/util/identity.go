package util

import "strings"

// Customer identity is exact string equality on the raw name, and on the shop
// where the sighting carries one. Every place that compares customer names
// goes through these helpers, so a normalizing or fuzzy policy has a single
// substitution point.

func CustomerKey(name string) string {
	return name
}

// TupleKey builds a map key for a (name, shop, handler) sighting. The
// separator cannot occur in cell text.
func TupleKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}
