package model

import "time"

// WorldStateEntry is one observation on the append-only world timeline.
type WorldStateEntry struct {
	ID         int64     `json:"id"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Turn is one logged conversational exchange.
type Turn struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	UserText     string    `json:"user_text"`
	ResponseText string    `json:"response_text"`
	Retrieved    []string  `json:"retrieved,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
