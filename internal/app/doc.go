// Package app ties the display phase to the browsing session.
//
// The Manager subscribes to the phase controller. While the phase is
// WebDisplay it keeps exactly one session.Tracker open on the phase URL;
// every other phase closes it. Navigation failures reported by the session
// are posted back to the controller, and connectivity changes can be forwarded
// with ForwardConnectivity.
//
//	display := app.NewManager(controller, browser.New(nil, logger, browser.DefaultOptions()),
//		nil, state, logger, session.Options{RedirectLimit: 70})
//	go display.ForwardConnectivity(ctx, monitor.Changes())
//	go display.Run(ctx)
package app
