package routing

import "errors"

// Caller-visible error kinds (spec.md §7). All other failures are internal:
// logged and absorbed rather than returned.
var (
	ErrPeerNotFound      = errors.New("routing: peer not found in forwarding table")
	ErrDisconnected      = errors.New("routing: peer known but unreachable")
	ErrAccountNotFound   = errors.New("routing: no announcement for account")
	ErrRouteBackNotFound = errors.New("routing: route-back hash unknown, consumed, or expired")
)
