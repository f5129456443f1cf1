// Package attribution models install attribution results and notification deep links.
package attribution
