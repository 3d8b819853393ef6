// Package channels implements the LINE webhook relay: signature
// verification, payload parsing, event dispatch, reply encryption and the
// outbound reply call.
package channels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// EventTypeMessage is the only actionable webhook event type.
	EventTypeMessage = "message"
	// MessageTypeText is the only actionable message type.
	MessageTypeText = "text"
)

// Event is one element of a webhook payload's events list.
type Event struct {
	Type       string   `json:"type"`
	ReplyToken string   `json:"replyToken,omitempty"`
	Message    *Message `json:"message,omitempty"`

	// Malformed marks an element that could not be decoded as an event
	// object. Such events are ignored by the dispatcher.
	Malformed bool `json:"-"`
}

// Message is the nested message record of a message event.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UnmarshalJSON decodes an event without ever failing: shape problems are
// recorded in Malformed so one bad element does not reject the batch.
// Keys match by exact name.
func (e *Event) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		*e = Event{Malformed: true}
		return nil
	}

	var decoded Event
	var err error
	if decoded.Type, err = stringField(fields, "type"); err != nil {
		*e = Event{Malformed: true}
		return nil
	}
	if decoded.ReplyToken, err = stringField(fields, "replyToken"); err != nil {
		*e = Event{Malformed: true}
		return nil
	}
	if raw, ok := fields["message"]; ok && !isJSONNull(raw) {
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			*e = Event{Malformed: true}
			return nil
		}
		decoded.Message = &msg
	}

	*e = decoded
	return nil
}

// UnmarshalJSON decodes a message record. Keys match by exact name.
func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("message must be an object")
	}

	var decoded Message
	var err error
	if decoded.Type, err = stringField(fields, "type"); err != nil {
		return err
	}
	if decoded.Text, err = stringField(fields, "text"); err != nil {
		return err
	}
	*m = decoded
	return nil
}

// stringField returns fields[key] as a string. Absent and null values
// yield "".
func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isJSONNull(raw) {
		return "", nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return v, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

var (
	ErrConfiguration    = errors.New("invalid relay configuration")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)
