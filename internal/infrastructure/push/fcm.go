// Package push delivers notifications through the FCM HTTP v1 API.
package push

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/infrastructure/config"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// Sender implements the PushSender port on FCM.
type Sender struct {
	http      *resty.Client
	projectID string
	logger    *zap.Logger
}

// NewSender creates the FCM sender from configuration.
func NewSender(cfg config.PushConfig, logger *zap.Logger) *Sender {
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.SendTimeout).
		SetAuthToken(cfg.Token).
		SetHeader("Content-Type", "application/json")
	return &Sender{http: client, projectID: cfg.ProjectID, logger: logger.Named("push")}
}

type sendRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendError struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendMulticast delivers one message to each device token and reports
// a per-token outcome. Tokens FCM rejects as unregistered surface as
// ErrInvalidPushToken so the caller can prune them; context expiry
// aborts the remainder of the batch.
func (s *Sender) SendMulticast(ctx context.Context, tokens []string, msg outbound.PushMessage) ([]outbound.PushResult, error) {
	results := make([]outbound.PushResult, 0, len(tokens))
	for _, token := range tokens {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, outbound.PushResult{Token: token, Err: s.send(ctx, token, msg)})
	}
	return results, nil
}

func (s *Sender) send(ctx context.Context, token string, msg outbound.PushMessage) error {
	var apiErr sendError
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			Message: fcmMessage{
				Token:        token,
				Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
				Data:         msg.Data,
			},
		}).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1/projects/%s/messages:send", s.projectID))
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	if resp.IsError() {
		if invalidToken(resp.StatusCode(), apiErr.Error.Status) {
			return outbound.ErrInvalidPushToken
		}
		return fmt.Errorf("fcm send: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	return nil
}

func invalidToken(statusCode int, status string) bool {
	if status == "UNREGISTERED" {
		return true
	}
	// FCM reports malformed tokens as INVALID_ARGUMENT on a 400.
	return statusCode == http.StatusBadRequest && status == "INVALID_ARGUMENT"
}
