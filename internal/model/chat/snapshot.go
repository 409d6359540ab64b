package chat

// Snapshot is the read-only view of a session handed to presentation surfaces.
type Snapshot struct {
	SessionID           string    `json:"sessionId"`
	Messages            []Message `json:"messages"`
	IsAwaitingResponse  bool      `json:"isAwaitingResponse"`
	IsConnected         bool      `json:"isConnected"`
	ConnectivityChecked bool      `json:"connectivityChecked"`
	Closed              bool      `json:"closed,omitempty"`
}

// InputEnabled mirrors the input gate of the chat view: typing is allowed only
// when no request is outstanding and the backend is reachable.
func (s Snapshot) InputEnabled() bool {
	return !s.Closed && !s.IsAwaitingResponse && s.IsConnected
}

// ShowDisconnected reports whether the disconnected banner should be visible.
// It stays hidden until the first probe has completed.
func (s Snapshot) ShowDisconnected() bool {
	return s.ConnectivityChecked && !s.IsConnected
}
