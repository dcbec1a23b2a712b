// Package middleware provides Redis-backed rate limiting for the webhook
// endpoint.
//
// Limits use a fixed window per client IP, counted in Redis so multiple
// receiver instances behind one load balancer share the same budget. Redis
// being down fails open: a hosting hook must never be dropped because the
// limiter's backing store is unavailable.
package middleware
