// Package types provides shared data structures for the display gate.
//
// These types cross package boundaries: the storage layer persists them, the
// session layer produces and consumes them, and the control API serializes
// them. Keeping them here avoids import cycles between domain packages.
//
// Core Types:
//   - RemoteConfig: last known good remote destination
//   - AppMode: persisted display mode (web or fallback)
//   - Cookie, CookieMap: cookie property bags keyed by domain and name
//   - Rect: on-screen bounds of a browsing context
//
// Example Usage:
//
//	jar := types.CookieMap{}
//	jar.Put(types.Cookie{Name: "sid", Value: "abc", Domain: "example.com"})
package types
