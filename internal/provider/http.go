package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSendTimeout = 10 * time.Second

type sendPayload struct {
	Reference   string `json:"reference"`
	Service     string `json:"service"`
	To          string `json:"to"`
	Message     string `json:"message,omitempty"`
	Subject     string `json:"subject,omitempty"`
	From        string `json:"from,omitempty"`
	AmountCents int64  `json:"amountCents,omitempty"`
	BundleCode  string `json:"bundleCode,omitempty"`
}

type sendResult struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

// HTTPProvider is a JSON-over-HTTP upstream client. All supported carriers
// share the same request shape; only endpoint and credentials differ.
type HTTPProvider struct {
	name     string
	client   *resty.Client
	endpoint string
}

func NewHTTPProvider(name, endpoint, apiKey string, timeout time.Duration) (*HTTPProvider, error) {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeader("Authorization", "Bearer "+apiKey)

	return NewHTTPProviderWithClient(name, endpoint, client)
}

func NewHTTPProviderWithClient(name, endpoint string, client *resty.Client) (*HTTPProvider, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return nil, fmt.Errorf("provider name is required")
	}

	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("provider endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid provider endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPProvider{
		name:     trimmedName,
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (p *HTTPProvider) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

func (p *HTTPProvider) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	payload := sendPayload{
		Reference:   req.TransactionID,
		Service:     strings.ToLower(req.Service.String()),
		To:          req.Destination,
		Message:     req.Message,
		Subject:     req.Subject,
		From:        req.SenderID,
		AmountCents: req.AmountCents,
		BundleCode:  req.BundleCode,
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(p.endpoint)
	if err != nil {
		return nil, &Error{
			Provider: p.name,
			Message:  "request failed",
			Cause:    err,
		}
	}
	if response == nil {
		return nil, &Error{
			Provider: p.name,
			Message:  "empty response",
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	var result sendResult
	_ = json.Unmarshal(response.Body(), &result)

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		messageID := strings.TrimSpace(result.MessageID)
		if messageID == "" {
			messageID = requestIDHeader(response)
		}
		return &SendResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageID,
		}, nil
	}

	message := strings.TrimSpace(result.Error)
	if message == "" {
		message = fmt.Sprintf("returned status %d", statusCode)
		if responseBody != "" {
			message = fmt.Sprintf("%s: %s", message, responseBody)
		}
	}

	return nil, &Error{
		Provider:   p.name,
		StatusCode: statusCode,
		Code:       strings.TrimSpace(result.Code),
		Message:    message,
	}
}

func requestIDHeader(response *resty.Response) string {
	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}
	return ""
}
