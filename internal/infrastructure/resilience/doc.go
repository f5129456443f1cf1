/*
Package resilience provides a circuit breaker for outbound calls.

The display gate never retries a config fetch on its own; the breaker only
short-circuits calls while the remote side is known to be failing, which the
resolver reports as an ordinary network failure. Callers then take the cached
config fallback exactly as for a timeout.

# Usage

	breaker := resilience.New("config-endpoint", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 5 },
	})

	resp, err := resilience.Execute(breaker, func() (*resty.Response, error) {
		return req.Post(url)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open
*/
package resilience
