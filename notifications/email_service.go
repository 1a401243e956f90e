package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoService sends mail through Brevo's transactional email API.
type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Endpoint    string
	client      *http.Client
	log         *zap.Logger
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

func NewBrevoService(apiKey, senderEmail, senderName string, log *zap.Logger) (*BrevoService, error) {
	if apiKey == "" || senderEmail == "" || senderName == "" {
		return nil, fmt.Errorf("brevo: api key, sender email and sender name are required")
	}
	return &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Endpoint:    brevoEndpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}, nil
}

func (s *BrevoService) Send(ctx context.Context, msg Message) error {
	if err := validRecipient(msg.ToEmail); err != nil {
		return err
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": msg.ToEmail, "name": recipientName(msg.ToName, msg.ToEmail)}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("brevo: status %d: %s", resp.StatusCode, respBody)
	}

	s.log.Debug("brevo accepted email", zap.String("to", msg.ToEmail), zap.ByteString("response", respBody))
	return nil
}
