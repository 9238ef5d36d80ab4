package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
)

var smsTracer = otel.Tracer("diagnosia.internal.services.sms")

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// SMSSender delivers a single text message to an E.164 number.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Configured reports whether credentials and a sender number are present.
func (s *TwilioSender) Configured() bool {
	return s != nil && s.accountSID != "" && s.authToken != "" && s.from != ""
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if !s.Configured() {
		return errors.New("twilio: credentials missing")
	}
	if to == "" {
		return errors.New("twilio: recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("twilio: body required")
	}

	ctx, span := smsTracer.Start(ctx, "sms.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("diagnosia.to", logging.MaskPhone(to)))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		span.RecordError(err)
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, payload))
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider rejected")
		return err
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &parsed); err == nil {
		span.SetAttributes(attribute.String("twilio.sid", parsed.SID))
	}
	s.logger.Debug("twilio sms accepted", "to", logging.MaskPhone(to), "sid", parsed.SID, "status", parsed.Status)
	return nil
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
