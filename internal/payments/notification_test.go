package payments

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNotification(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		query string
		want  Notification
	}{
		{
			name: "body with numeric id",
			body: `{"type":"payment","data":{"id":123456}}`,
			want: Notification{Type: "payment", PaymentID: "123456"},
		},
		{
			name: "body with string id and topic",
			body: `{"topic":"payment","data":{"id":"987"}}`,
			want: Notification{Type: "payment", PaymentID: "987"},
		},
		{
			name:  "query data.id",
			query: "type=payment&data.id=555",
			want:  Notification{Type: "payment", PaymentID: "555"},
		},
		{
			name:  "query legacy topic and id",
			query: "topic=payment&id=777",
			want:  Notification{Type: "payment", PaymentID: "777"},
		},
		{
			name:  "malformed body falls back to query",
			body:  `{not json`,
			query: "type=payment&id=42",
			want:  Notification{Type: "payment", PaymentID: "42"},
		},
		{
			name:  "body wins over query",
			body:  `{"type":"merchant_order","data":{"id":"1"}}`,
			query: "type=payment&id=2",
			want:  Notification{Type: "merchant_order", PaymentID: "1"},
		},
		{
			name: "null id",
			body: `{"type":"payment","data":{"id":null}}`,
			want: Notification{Type: "payment"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, ParseNotification([]byte(tc.body), q))
		})
	}
}

func TestNotificationIsPayment(t *testing.T) {
	assert.True(t, Notification{Type: "Payment", PaymentID: "1"}.IsPayment())
	assert.False(t, Notification{Type: "payment"}.IsPayment())
	assert.False(t, Notification{Type: "merchant_order", PaymentID: "1"}.IsPayment())
}
