// Package slack is a minimal Slack client for the bot's needs: Socket Mode
// event delivery plus threaded replies via chat.postMessage. It talks to the
// Web API directly instead of pulling in a full SDK.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

const DefaultBaseURL = "https://slack.com/api"

// API is a thin Slack Web API client. The bot token authorizes message posting
// and identity calls; the app-level token opens Socket Mode connections.
type API struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	appToken   string
}

func NewAPI(httpClient *http.Client, baseURL, botToken, appToken string) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &API{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		botToken:   botToken,
		appToken:   appToken,
	}
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// AuthTestResponse carries the bot's own identity.
type AuthTestResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	UserID string `json:"user_id,omitempty"`
	TeamID string `json:"team_id,omitempty"`
}

// AuthTest resolves the bot's user id so inbound events from the bot itself
// can be ignored.
func (a *API) AuthTest(ctx context.Context) (AuthTestResponse, error) {
	var out AuthTestResponse
	if err := a.call(ctx, "auth.test", a.botToken, nil, &out); err != nil {
		return AuthTestResponse{}, err
	}
	if !out.OK {
		return AuthTestResponse{}, fmt.Errorf("slack auth.test: %s", out.Error)
	}
	return out, nil
}

// PostMessage sends text to a channel, anchored to threadTS when non-empty.
func (a *API) PostMessage(ctx context.Context, channelID, text, threadTS string) error {
	payload := map[string]string{
		"channel": channelID,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}

	var out apiResponse
	if err := a.call(ctx, "chat.postMessage", a.botToken, payload, &out); err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("slack chat.postMessage: %s", out.Error)
	}
	return nil
}

type connectionsOpenResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	URL   string `json:"url,omitempty"`
}

// ConnectSocket opens a Socket Mode connection: apps.connections.open for a
// one-time websocket URL, then the dial itself.
func (a *API) ConnectSocket(ctx context.Context) (*websocket.Conn, error) {
	var out connectionsOpenResponse
	if err := a.call(ctx, "apps.connections.open", a.appToken, nil, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("slack apps.connections.open: %s", out.Error)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("slack apps.connections.open returned empty url")
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, out.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("slack socket dial: %w", err)
	}
	return conn, nil
}

func (a *API) call(ctx context.Context, method, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("slack %s: marshal payload: %w", method, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+method, body)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: unexpected status %d", method, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("slack %s: decode response: %w", method, err)
	}
	return nil
}
