package ws

// Event is the frame written to and read from a socket.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
