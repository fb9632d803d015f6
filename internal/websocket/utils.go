package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// EnsureJSON returns the payload unchanged when it is already a valid
// JSON document, and re-encodes it as a JSON string otherwise. Visibility
// payloads land in a jsonb column; a malformed document would poison the
// persistence queue, so the client-controlled string is normalized before
// it is queued.
func EnsureJSON(payload string) string {
	if payload != "" && json.Valid([]byte(payload)) {
		return payload
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return conn.ReadJSON(v)
}
