package phase

import (
	"github.com/GriffinCanCode/bubblegate/internal/domain/attribution"
	"github.com/GriffinCanCode/bubblegate/internal/domain/connectivity"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
)

// Event is an input to the controller loop
type Event interface {
	eventName() string
}

// AttributionReceived carries the install attribution result
type AttributionReceived struct {
	Payload attribution.Payload
}

// AttributionFailed reports that no attribution result will arrive
type AttributionFailed struct{}

// ConnectivityChanged reports a reachability transition
type ConnectivityChanged struct {
	State connectivity.State
}

// PushTokenUpdated carries a newly issued push token
type PushTokenUpdated struct {
	Token string
}

// RetryRequested is the user's explicit retry from the offline screen
type RetryRequested struct{}

// NotificationReceived carries an inbound notification payload
type NotificationReceived struct {
	Payload map[string]any
}

// PermissionAnswer is the user's response to the notification permission prompt
type PermissionAnswer int

const (
	PermissionDeferred PermissionAnswer = iota
	PermissionGranted
	PermissionDenied
)

// PermissionAnswered resumes resolution suspended on the permission prompt
type PermissionAnswered struct {
	Answer PermissionAnswer
}

// NavigationFailed reports an unrecoverable browsing failure
type NavigationFailed struct {
	Err error
}

type configResolved struct {
	trigger trigger
	config  *types.RemoteConfig
	err     error
}

type organicChecked struct {
	base   attribution.Payload
	result attribution.Payload
	err    error
}

type deepLinkDue struct {
	url string
}

func (AttributionReceived) eventName() string  { return "attribution" }
func (AttributionFailed) eventName() string    { return "attribution_failure" }
func (ConnectivityChanged) eventName() string  { return "connectivity" }
func (PushTokenUpdated) eventName() string     { return "push_token" }
func (RetryRequested) eventName() string       { return "retry" }
func (NotificationReceived) eventName() string { return "notification" }
func (PermissionAnswered) eventName() string   { return "permission" }
func (NavigationFailed) eventName() string     { return "navigation_failed" }
func (configResolved) eventName() string       { return "config_resolved" }
func (organicChecked) eventName() string       { return "organic_checked" }
func (deepLinkDue) eventName() string          { return "deep_link_due" }
