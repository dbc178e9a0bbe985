package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	cases := []struct {
		frame string
		want  Request
	}{
		{`{"type":"auth","token":"t"}`, AuthRequest{Token: "t"}},
		{`{"type":"ping"}`, PingRequest{}},
		{`{"type":"pong"}`, PongRequest{}},
		{`{"type":"fetch_notifications","limit":7}`, FetchNotificationsRequest{Limit: 7}},
		{`{"type":"fetch_notifications"}`, FetchNotificationsRequest{}},
		{`{"type":"subscribe_jobs"}`, SubscribeJobsRequest{}},
		{`{"type":"unsubscribe_jobs"}`, UnsubscribeJobsRequest{}},
		{`{"type":"nope"}`, UnknownRequest{Type: "nope"}},
		{`{}`, UnknownRequest{}},
		{`{"type":"auth","token":12345}`, AuthRequest{}},
		{`{"type":"auth"}`, AuthRequest{}},
		{`{"type":"ping","limit":"x"}`, PingRequest{}},
		{`{"type":"fetch_notifications","limit":"5"}`, FetchNotificationsRequest{}},
		{`{"type":"fetch_notifications","limit":2.5}`, FetchNotificationsRequest{}},
		{`{"type":5}`, UnknownRequest{}},
	}
	for _, tc := range cases {
		got, err := parseRequest([]byte(tc.frame))
		require.NoError(t, err, tc.frame)
		assert.Equal(t, tc.want, got, tc.frame)
	}
}

func TestParseRequest_Malformed(t *testing.T) {
	for _, frame := range []string{``, `{`, `[1,2]`, `"auth"`} {
		_, err := parseRequest([]byte(frame))
		assert.ErrorIs(t, err, ErrMalformedMessage, frame)
	}
}
