// Package middleware provides the control API middleware.
//
//   - CORS: wildcard origins, trace headers allowed and exposed
//   - RateLimit: per-IP token bucket with idle eviction and exempt paths
//   - GlobalRateLimit: one bucket shared by every client
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
