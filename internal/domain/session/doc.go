// Package session tracks the browsing session shown in web display mode.
//
// A Tracker owns one primary browsing context and a LIFO stack of popups.
// It is the surface.Delegate of every context it creates, so it sees each
// navigation decision, server redirect and window-open request.
//
// Components:
//   - Tracker: context lifetimes, redirect guards, popup stack
//   - Cookie continuity: the shared cookie store is snapshotted on every
//     server redirect and on Close, and restored before the first load
//
// Navigation Policy:
//   - http, https and about URLs load in place
//   - any other scheme is handed to the ExternalOpener and cancelled
//   - user-initiated top-level navigations start a fresh redirect count
//
// Redirect Loops:
//   - the committed URL is the recovery target, or the hop's origin when
//     nothing has been committed yet
//   - the first overflow of a navigation reloads that target
//   - a later overflow stops loading and is reported to OnNavigationFailed
//
// Example Usage:
//
//	tracker := session.NewTracker(factory, popups, opener, state, logger, session.Options{})
//	err := tracker.Open(ctx, "https://example.com")
//	tracker.CloseSecondary(ctx)
//	err = tracker.Close(ctx)
package session
