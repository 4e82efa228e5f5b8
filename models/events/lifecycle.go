package events

import (
	"time"

	"github.com/polycast/relay/models/rest"
)

type SessionEventType string

const (
	SessionEvent_Started SessionEventType = "session_started"
	SessionEvent_Stopped SessionEventType = "session_stopped"
)

// SessionEvent is published to the event store on session lifecycle
// transitions.
type SessionEvent struct {
	Type         SessionEventType         `json:"type"`
	SessionId    string                   `json:"sessionId"`
	UserId       string                   `json:"userId"`
	Timestamp    time.Time                `json:"timestamp"`
	Duration     int64                    `json:"duration,omitempty"`
	Destinations []rest.DestinationStatus `json:"destinations,omitempty"`
}
