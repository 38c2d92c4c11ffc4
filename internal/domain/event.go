// Package domain defines the event and filter types shared by the pipeline,
// the broadcast hub and the subscriber server.
package domain

import (
	"fmt"
	"time"
)

// EventTypeTokenCreated tags every event published by the pipeline.
const EventTypeTokenCreated = "tokenCreated"

// TokenCreatedEvent is the unit published by the pipeline and delivered to
// subscribers, one JSON object per WebSocket text frame.
type TokenCreatedEvent struct {
	EventType            string       `json:"eventType"`
	Timestamp            EventTime    `json:"timestamp"`
	TransactionSignature string       `json:"transactionSignature"`
	Token                TokenDetails `json:"token"`
	PumpData             PumpFunData  `json:"pumpData"`
}

// TokenDetails describes the newly created token.
type TokenDetails struct {
	MintAddress string `json:"mintAddress"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	URI         string `json:"uri"`
	Creator     string `json:"creator"`
	Supply      uint64 `json:"supply"`
	Decimals    uint8  `json:"decimals"`
}

// PumpFunData carries the bonding-curve state published with the event.
type PumpFunData struct {
	BondingCurve         string `json:"bondingCurve"`
	VirtualSolReserves   uint64 `json:"virtualSolReserves"`
	VirtualTokenReserves uint64 `json:"virtualTokenReserves"`
}

// eventTimeLayout is ISO 8601 UTC with millisecond precision and trailing Z.
const eventTimeLayout = "2006-01-02T15:04:05.000Z"

// EventTime wraps time.Time so the external form is always UTC with
// millisecond precision.
type EventTime struct {
	time.Time
}

// NewEventTime truncates t to millisecond precision in UTC.
func NewEventTime(t time.Time) EventTime {
	return EventTime{t.UTC().Truncate(time.Millisecond)}
}

// MarshalJSON encodes the timestamp in the external ISO 8601 form.
func (t EventTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(eventTimeLayout) + `"`), nil
}

// UnmarshalJSON parses the external ISO 8601 form.
func (t *EventTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("timestamp is not a JSON string: %s", s)
	}
	parsed, err := time.Parse(eventTimeLayout, s[1:len(s)-1])
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	t.Time = parsed
	return nil
}
