/*
Package client provides the outbound HTTP client shared by the remote config
resolver.

The client pairs resty with the pooled transport from go-retryablehttp, a
rate limiter and a circuit breaker. Automatic retries are disabled at every
layer: a config fetch is attempted once and any failure is handed back to the
caller.
*/
package client
