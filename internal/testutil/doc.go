// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing core model objects (segments,
// contexts, agents) and recording side effects (broadcasts). These helpers
// are intentionally minimal and not intended for production usage.
package testutil
