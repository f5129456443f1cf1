// Package server wires bubblegate together and serves the control API.
//
// Server lifecycle:
//  1. Open the key-value store (SQLite, or memory for an empty path)
//  2. Build the resolver, phase controller and connectivity monitor
//  3. Build the browsing surface and the display manager
//  4. Mount middleware and routes on a gin engine
//  5. Run starts every component and the listener
//  6. Cancelling the Run context shuts the listener down and stops components
//
//	srv, err := server.NewServer(cfg, logger, server.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	err = srv.Run(ctx)
package server
