// Package redirect detects server redirect loops in a browsing context.
//
// Each context owns a Guard. Once a navigation exceeds the limit, loading is
// stopped and the last URL the context committed before the chain is loaded
// once; further overflows in the same navigation only stop loading.
package redirect
