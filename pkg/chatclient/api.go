package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"freelance_hub/internal/domain"

	"github.com/google/uuid"
)

// API - HTTP часть протокола: история и разрешение на подписку
type API interface {
	History(ctx context.Context, projectID uuid.UUID) ([]*domain.ChatMessage, error)
	Authorize(ctx context.Context, socketID, channel string) (*domain.ChannelGrant, error)
}

// HTTPClient ходит в REST API от имени пользователя с access токеном
type HTTPClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewHTTPClient(baseURL, accessToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type historyResponse struct {
	Messages []*domain.ChatMessage `json:"messages"`
}

func (c *HTTPClient) History(ctx context.Context, projectID uuid.UUID) ([]*domain.ChatMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/projects/"+projectID.String()+"/messages", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var response historyResponse
	if err := c.do(httpReq, &response); err != nil {
		return nil, err
	}

	return response.Messages, nil
}

func (c *HTTPClient) Authorize(ctx context.Context, socketID, channel string) (*domain.ChannelGrant, error) {
	form := url.Values{}
	form.Set("socket_id", socketID)
	form.Set("channel_name", channel)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/pusher/auth", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var grant domain.ChannelGrant
	if err := c.do(httpReq, &grant); err != nil {
		return nil, err
	}

	return &grant, nil
}

func (c *HTTPClient) do(httpReq *http.Request, out interface{}) error {
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// StatusError - сервер ответил не 200
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Rejected: сервер отказал в доступе, повтор не поможет
func (e *StatusError) Rejected() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
