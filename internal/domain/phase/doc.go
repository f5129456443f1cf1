/*
Package phase decides what the app displays.

The Controller converges racing inputs (attribution, connectivity, push token
registration, retries, notification deep links) onto exactly one phase:

	Initializing -> WebDisplay(url) | Fallback
	WebDisplay   -> Offline          (connectivity lost)
	WebDisplay   -> WebDisplay(url)  (new config or deep link)
	Offline      -> WebDisplay | Fallback   (explicit retry only)
	Fallback     -> WebDisplay              (push token resolution only)

Every other transition is rejected and logged. Events are handled one at a
time on the loop started by Run. Config fetches and timed delays run in
goroutines and post their completions back to the loop, so overlapping
fetches race and the last admitted completion wins.

A resolution that fails for any reason uses the persisted config if one
exists; otherwise the app switches to Fallback and remembers it, so later
launches go straight to Fallback.
*/
package phase
