// Package http provides the control API handlers.
//
// Collaborators outside the process (attribution SDK bridge, push service,
// presentation layer) deliver their inputs as events to the phase controller
// through these routes. Event routes answer 202 once the controller accepted
// the event; the resulting phase is observed via GET /phase or the stream.
package http
