package websocket

import (
	"encoding/json"
	"errors"
)

const (
	TypeAuth               = "auth"
	TypePing               = "ping"
	TypePong               = "pong"
	TypeFetchNotifications = "fetch_notifications"
	TypeSubscribeJobs      = "subscribe_jobs"
	TypeUnsubscribeJobs    = "unsubscribe_jobs"
)

var ErrMalformedMessage = errors.New("malformed message")

// Request is the closed set of client-to-server messages.
type Request interface {
	requestType() string
}

type AuthRequest struct {
	Token string
}

type PingRequest struct{}

type PongRequest struct{}

type FetchNotificationsRequest struct {
	Limit int
}

type SubscribeJobsRequest struct{}

type UnsubscribeJobsRequest struct{}

// UnknownRequest is any well-formed frame whose type is missing or not recognised.
type UnknownRequest struct {
	Type string
}

func (AuthRequest) requestType() string               { return TypeAuth }
func (PingRequest) requestType() string               { return TypePing }
func (PongRequest) requestType() string               { return TypePong }
func (FetchNotificationsRequest) requestType() string { return TypeFetchNotifications }
func (SubscribeJobsRequest) requestType() string      { return TypeSubscribeJobs }
func (UnsubscribeJobsRequest) requestType() string    { return TypeUnsubscribeJobs }
func (r UnknownRequest) requestType() string          { return r.Type }

// incomingMessage holds the raw fields of a frame. Fields are decoded one at
// a time so a wrong-typed field never hides the frame's type.
type incomingMessage struct {
	Type  json.RawMessage `json:"type"`
	Token json.RawMessage `json:"token"`
	Limit json.RawMessage `json:"limit"`
}

// parseRequest fails only when data is not a JSON object. A missing or
// non-string type yields UnknownRequest; an unusable token or limit decodes
// to its zero value.
func parseRequest(data []byte) (Request, error) {
	var msg incomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrMalformedMessage, err)
	}

	switch typ := stringField(msg.Type); typ {
	case TypeAuth:
		return AuthRequest{Token: stringField(msg.Token)}, nil
	case TypePing:
		return PingRequest{}, nil
	case TypePong:
		return PongRequest{}, nil
	case TypeFetchNotifications:
		return FetchNotificationsRequest{Limit: intField(msg.Limit)}, nil
	case TypeSubscribeJobs:
		return SubscribeJobsRequest{}, nil
	case TypeUnsubscribeJobs:
		return UnsubscribeJobsRequest{}, nil
	default:
		return UnknownRequest{Type: typ}, nil
	}
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func intField(raw json.RawMessage) int {
	var n int
	if len(raw) == 0 || json.Unmarshal(raw, &n) != nil {
		return 0
	}
	return n
}
