package rest

import "time"

// Destination describes one remote publishing endpoint, supplied at session
// start and immutable afterwards.
type Destination struct {
	Platform  string `json:"platform"`
	Name      string `json:"name"`
	StreamUrl string `json:"streamUrl"`
	StreamKey string `json:"streamKey"`
}

// PublishUrl joins the endpoint and its credential into the address handed to
// the encoder.
func (d Destination) PublishUrl() string {
	if d.StreamKey == "" {
		return d.StreamUrl
	}
	url := d.StreamUrl
	if url[len(url)-1] != '/' {
		url += "/"
	}
	return url + d.StreamKey
}

type StartSessionRequest struct {
	Destinations []Destination `json:"destinations"`
	Title        string        `json:"title,omitempty"`
	Description  string        `json:"description,omitempty"`
}

type DestinationStatus struct {
	Platform string `json:"platform"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

type StartSessionResponse struct {
	SessionId    string              `json:"sessionId"`
	Destinations []DestinationStatus `json:"destinations"`
}

type StopSessionResponse struct {
	Duration     int64               `json:"duration"`
	Destinations []DestinationStatus `json:"destinations"`
}

type SessionStatusResponse struct {
	Active       bool                `json:"active"`
	SessionId    string              `json:"sessionId,omitempty"`
	StartTime    *time.Time          `json:"startTime,omitempty"`
	Duration     int64               `json:"duration,omitempty"`
	Destinations []DestinationStatus `json:"destinations,omitempty"`
}

type SessionHistoryEntry struct {
	SessionId    string              `json:"sessionId"`
	UserId       string              `json:"userId"`
	StartedAt    time.Time           `json:"startedAt"`
	EndedAt      time.Time           `json:"endedAt"`
	Duration     int64               `json:"duration"`
	Destinations []DestinationStatus `json:"destinations"`
}

type SessionHistoryResponse struct {
	Sessions []SessionHistoryEntry `json:"sessions"`
}

type DebugSessionInfo struct {
	SessionId    string              `json:"sessionId"`
	UserId       string              `json:"userId"`
	StartTime    time.Time           `json:"startTime"`
	Destinations []DestinationStatus `json:"destinations"`
}

type DebugListSessionsResponse struct {
	Sessions []DebugSessionInfo `json:"sessions"`
}
