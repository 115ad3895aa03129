package types

// SelectRequest changes the current selection.
type SelectRequest struct {
	Address string `json:"address" binding:"required"`
}

// WSMessage represents a browser websocket message
type WSMessage struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
}
