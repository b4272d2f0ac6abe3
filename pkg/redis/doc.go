// Package redis connects courier to Redis.
//
// Redis is optional: it only backs the distributed processor lease
// (see package lease) when more than one courier instance runs against the
// same store. Connect retries until PING succeeds and ReadinessCheck plugs the
// client into the readiness endpoint.
package redis
