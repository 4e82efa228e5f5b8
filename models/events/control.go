package events

// Control channel message types. The set is closed: anything outside it is
// answered with MessageType_Error.
type ControlMessageType string

const (
	MessageType_Authenticate  ControlMessageType = "authenticate"
	MessageType_Authenticated ControlMessageType = "authenticated"
	MessageType_StreamStart   ControlMessageType = "stream_start"
	MessageType_StreamStarted ControlMessageType = "stream_started"
	MessageType_StreamStop    ControlMessageType = "stream_stop"
	MessageType_StreamStopped ControlMessageType = "stream_stopped"
	MessageType_Ping          ControlMessageType = "ping"
	MessageType_Pong          ControlMessageType = "pong"
	MessageType_Error         ControlMessageType = "error"
)

type ControlEnvelope struct {
	Type ControlMessageType `json:"type" mapstructure:"type"`
}

type AuthenticateCommand struct {
	Token string `json:"token" mapstructure:"token"`
}

type AuthenticatedReply struct {
	Type   ControlMessageType `json:"type"`
	UserId string             `json:"userId"`
}

type AckReply struct {
	Type   ControlMessageType `json:"type"`
	Status string             `json:"status"`
}

type PongReply struct {
	Type ControlMessageType `json:"type"`
}

type ErrorReply struct {
	Type    ControlMessageType `json:"type"`
	Message string             `json:"message"`
}
