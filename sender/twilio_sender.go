package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type TwilioSender struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

func NewTwilioSender(sid, token, from, baseURL string) (*TwilioSender, error) {
	if sid == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID not set")
	}
	if token == "" {
		return nil, fmt.Errorf("TWILIO_AUTH_TOKEN not set")
	}
	if from == "" {
		return nil, fmt.Errorf("TWILIO_FROM_NUMBER not set")
	}
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}

	return &TwilioSender{
		accountSID: sid,
		authToken:  token,
		fromNumber: from,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (t *TwilioSender) SendSMS(ctx context.Context, to, text string) (SendResult, error) {
	if strings.TrimSpace(to) == "" {
		return SendResult{}, fmt.Errorf("twilio: %w: empty number", ErrInvalidRecipient)
	}
	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)

	formData := url.Values{}
	formData.Set("To", to)
	formData.Set("From", t.fromNumber)
	formData.Set("Body", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL,
		strings.NewReader(formData.Encode()))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return SendResult{}, fmt.Errorf("twilio error %s: %s", resp.Status, string(respBody))
	}

	var out struct {
		SID string `json:"sid"`
	}
	_ = json.Unmarshal(respBody, &out)
	if out.SID == "" {
		out.SID = fmt.Sprintf("twilio-%d", time.Now().UnixNano())
	}

	return SendResult{Provider: "twilio", MessageID: out.SID, SentAt: time.Now()}, nil
}
