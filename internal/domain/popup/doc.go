// Package popup spawns secondary browsing contexts for window-open requests.
package popup
