package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPPusher delivers notifications through an FCM-style HTTP endpoint.
// Messages are sent data-only so the client controls presentation.
type HTTPPusher struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPPusher builds a pusher for the given endpoint. Returns nil when
// the endpoint is not configured, which disables push entirely.
func NewHTTPPusher(endpoint, apiKey string) *HTTPPusher {
	if endpoint == "" {
		return nil
	}
	return &HTTPPusher{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type pushRequest struct {
	MessageID       string            `json:"message_id"`
	RegistrationIDs []string          `json:"registration_ids"`
	Data            map[string]string `json:"data"`
}

type pushResponse struct {
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// SendMulticast posts one request covering all tokens and maps the
// per-token outcomes to SendResults.
func (p *HTTPPusher) SendMulticast(ctx context.Context, tokens []string, n Notification) ([]SendResult, error) {
	data := map[string]string{
		"title": n.Title,
		"body":  n.Body,
	}
	for k, v := range n.Data {
		data[k] = v
	}
	payload, err := json.Marshal(pushRequest{
		MessageID:       uuid.NewString(),
		RegistrationIDs: tokens,
		Data:            data,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "key="+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}

	var body pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	results := make([]SendResult, len(tokens))
	for i, token := range tokens {
		results[i].Token = token
		if i < len(body.Results) {
			results[i].Code = normalizeCode(body.Results[i].Error)
		}
	}
	return results, nil
}

// normalizeCode maps endpoint error strings onto the dispatcher's
// classification codes.
func normalizeCode(errStr string) string {
	switch errStr {
	case "":
		return ""
	case "NotRegistered", "MissingRegistration":
		return "unregistered"
	case "InvalidRegistration":
		return "invalid-registration-token"
	case "InvalidParameters":
		return "invalid-argument"
	case "Unavailable", "DeviceMessageRateExceeded":
		return "unavailable"
	case "InternalServerError":
		return "internal"
	default:
		return errStr
	}
}
