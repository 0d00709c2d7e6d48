// Package topics normalizes Shopify webhook topic names. The platform uses
// slash form in webhook headers (orders/create) and underscore enum form in
// its GraphQL API (ORDERS_CREATE); both map to one canonical form here.
package topics

import "strings"

// Canonical lowercases a topic and rewrites slash separators to underscores,
// so orders/create and ORDERS_CREATE compare equal.
func Canonical(topic string) string {
	topic = strings.TrimSpace(strings.ToLower(topic))
	return strings.ReplaceAll(topic, "/", "_")
}

// Matches reports whether a received topic names the same event as the
// expected topic. A missing received topic never matches.
func Matches(received, expected string) bool {
	if strings.TrimSpace(received) == "" {
		return false
	}
	return Canonical(received) == Canonical(expected)
}
