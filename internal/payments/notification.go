package payments

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

const notificationTypePayment = "payment"

// Notification is the gateway's "something changed" ping. It carries no state;
// the payment is always fetched before anything is written.
type Notification struct {
	Type      string
	PaymentID string
}

// IsPayment reports whether the notification concerns a payment with an id.
func (n Notification) IsPayment() bool {
	return strings.EqualFold(n.Type, notificationTypePayment) && n.PaymentID != ""
}

type notificationBody struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseNotification reads the event type and payment id from the JSON body,
// falling back to query parameters for each field. Malformed bodies are
// treated as empty.
func ParseNotification(body []byte, query url.Values) Notification {
	var payload notificationBody
	if len(bytes.TrimSpace(body)) > 0 {
		_ = json.Unmarshal(body, &payload)
	}

	n := Notification{
		Type:      firstNonEmpty(payload.Type, payload.Topic, query.Get("type"), query.Get("topic")),
		PaymentID: firstNonEmpty(rawID(payload.Data.ID), query.Get("data.id"), query.Get("id")),
	}
	return n
}

func rawID(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
