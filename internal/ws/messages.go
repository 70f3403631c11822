package ws

import (
	"encoding/json"
	"errors"

	"supmap-navigation/internal/gis/routing"
	"supmap-navigation/internal/navigation"
)

// Inbound message types.
const (
	TypeStart        = "start"
	TypePosition     = "position"
	TypeStop         = "stop"
	TypeVoice        = "voice"
	TypeConnectivity = "connectivity"
)

// Outbound message types.
const (
	TypeSnapshot           = "snapshot"
	TypeStep               = "step"
	TypeRoute              = "route"
	TypeRerouteFailed      = "reroute_failed"
	TypeAnnouncement       = "announcement"
	TypeAnnouncementCancel = "announcement_cancel"
	TypeError              = "error"
)

type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newMessage(typ string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Data: raw}, nil
}

type VoicePayload struct {
	Enabled bool `json:"enabled"`
}

type ConnectivityPayload struct {
	Online bool `json:"online"`
}

type StepPayload struct {
	Index       int    `json:"index"`
	Instruction string `json:"instruction"`
	Maneuver    string `json:"maneuver"`
	Name        string `json:"name,omitempty"`
	Distance    string `json:"distance"`
	Duration    string `json:"duration"`
}

func newStepPayload(index int, step navigation.Step) StepPayload {
	return StepPayload{
		Index:       index,
		Instruction: step.Instruction,
		Maneuver:    step.Maneuver,
		Name:        step.Name,
		Distance:    navigation.FormatDistance(step.Distance),
		Duration:    navigation.FormatDuration(step.Duration),
	}
}

type RoutePayload struct {
	Route    *navigation.Route `json:"route"`
	Distance string            `json:"distance"`
	Duration string            `json:"duration"`
}

func newRoutePayload(route *navigation.Route) RoutePayload {
	return RoutePayload{
		Route:    route,
		Distance: navigation.FormatDistance(route.Distance),
		Duration: navigation.FormatDuration(route.Duration),
	}
}

type AnnouncementPayload struct {
	Text string `json:"text"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes sent to the device.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidMessage = "invalid_message"
	CodeNoRoute        = "no_route_available"
	CodeUpstream       = "upstream_error"
	CodeNotTraveling   = "not_traveling"
	CodeInternal       = "internal_error"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, routing.ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, routing.ErrNoRouteAvailable):
		return CodeNoRoute
	case errors.Is(err, routing.ErrUpstreamRoute):
		return CodeUpstream
	case errors.Is(err, navigation.ErrNotTraveling):
		return CodeNotTraveling
	}
	return CodeInternal
}
