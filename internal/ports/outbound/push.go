package outbound

import (
	"context"
	"errors"
)

// ErrInvalidPushToken marks a token the provider rejected as stale or
// unregistered. The dispatcher deactivates such tokens instead of
// retrying them.
var ErrInvalidPushToken = errors.New("push token invalid or unregistered")

// PushMessage is one notification payload.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushResult reports the delivery outcome for one token of a multicast.
type PushResult struct {
	Token string
	Err   error
}

// PushSender fans one notification out to a set of device tokens. The
// returned error covers whole-batch failures; per-token failures land
// in the results.
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, msg PushMessage) ([]PushResult, error)
}
