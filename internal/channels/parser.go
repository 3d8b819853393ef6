package channels

import (
	"encoding/json"
	"fmt"
)

// ParseWebhookPayload decodes a verified webhook body into its events. The
// body must be a JSON object with an events list under the exact key
// "events"; individual events are not validated here.
func ParseWebhookPayload(body []byte) ([]Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	raw, ok := fields["events"]
	if !ok || isJSONNull(raw) {
		return nil, fmt.Errorf("%w: events field is required", ErrMalformedPayload)
	}

	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("%w: events: %v", ErrMalformedPayload, err)
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}
