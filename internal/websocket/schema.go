package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave   Action = "autosave"
	ActionFlag       Action = "flag"
	ActionSubmit     Action = "submit"
	ActionPing       Action = "ping"
	ActionVisibility Action = "visibility"
)

// RequestPayload is the single inbound message shape. Fields beyond
// Action are populated depending on the action.
type RequestPayload struct {
	Action  Action `json:"action"`
	QID     string `json:"q_id,omitempty"`
	Answer  string `json:"ans,omitempty"`
	Flagged bool   `json:"flagged,omitempty"`
	Payload string `json:"payload,omitempty"` // visibility: raw event JSON string
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventGraded  Event = "graded"
	EventLocked  Event = "locked"
	EventPong    Event = "pong"
)

type SuccessResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type GradedResponse struct {
	Event  Event   `json:"event"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
