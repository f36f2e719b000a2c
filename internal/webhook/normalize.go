// Package webhook parses inbound provider callbacks into canonical events
// and serves the webhook HTTP endpoints.
package webhook

import (
	"strconv"
	"time"
)

// InboundEvent is the canonical representation of one customer-originated
// text message extracted from a provider callback.
type InboundEvent struct {
	SenderID   string    // provider contact identifier (phone number)
	SenderName string    // profile display name; empty when absent
	Body       string    // message text
	Timestamp  time.Time // provider timestamp; zero when absent
}

// Normalize walks a decoded provider payload and extracts an InboundEvent.
// The payload is deeply nested and only partially populated on any given
// callback: status updates carry no message, delivery receipts are a
// different variant entirely. Every missing key, wrong type, or empty array
// is an expected outcome and yields (zero, false) — never an error. An event
// is emitted only for a text-typed message with a non-empty sender and body;
// the contact display name is independently optional.
func Normalize(payload map[string]any) (InboundEvent, bool) {
	entry, ok := firstElem(payload["entry"])
	if !ok {
		return InboundEvent{}, false
	}
	change, ok := firstElem(entry["changes"])
	if !ok {
		return InboundEvent{}, false
	}
	if field, _ := change["field"].(string); field != "messages" {
		return InboundEvent{}, false
	}
	value, ok := change["value"].(map[string]any)
	if !ok {
		return InboundEvent{}, false
	}
	message, ok := firstElem(value["messages"])
	if !ok {
		return InboundEvent{}, false
	}
	if typ, _ := message["type"].(string); typ != "text" {
		return InboundEvent{}, false
	}

	from, _ := message["from"].(string)
	body := ""
	if text, ok := message["text"].(map[string]any); ok {
		body, _ = text["body"].(string)
	}
	if from == "" || body == "" {
		return InboundEvent{}, false
	}

	ev := InboundEvent{
		SenderID:  from,
		Body:      body,
		Timestamp: parseUnixSeconds(message["timestamp"]),
	}

	// The contact profile lives in an independently optional branch; its
	// absence never blocks the event.
	if contact, ok := firstElem(value["contacts"]); ok {
		if profile, ok := contact["profile"].(map[string]any); ok {
			ev.SenderName, _ = profile["name"].(string)
		}
	}

	return ev, true
}

// firstElem returns the first element of v when v is a non-empty array of
// objects.
func firstElem(v any) (map[string]any, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	m, ok := arr[0].(map[string]any)
	return m, ok
}

// parseUnixSeconds interprets the provider's unix-seconds timestamp string.
// Anything unparseable yields the zero time, which downstream treats as
// "default to ingestion time".
func parseUnixSeconds(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
