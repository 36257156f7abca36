package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth.test", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-bot", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":true,"user_id":"U01BOT","team_id":"T01"}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "xoxb-bot", "xapp-app")
	out, err := api.AuthTest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "U01BOT", out.UserID)
	assert.Equal(t, "T01", out.TeamID)
}

func TestAuthTestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "xoxb-bot", "xapp-app")
	_, err := api.AuthTest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_auth")
}

func TestPostMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-bot", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "xoxb-bot", "xapp-app")
	err := api.PostMessage(context.Background(), "C01", "it is done", "1700000000.000100")
	require.NoError(t, err)

	assert.Equal(t, "C01", got["channel"])
	assert.Equal(t, "it is done", got["text"])
	assert.Equal(t, "1700000000.000100", got["thread_ts"])
}

func TestPostMessageWithoutThread(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "xoxb-bot", "xapp-app")
	require.NoError(t, api.PostMessage(context.Background(), "C01", "hello", ""))

	_, hasThread := got["thread_ts"]
	assert.False(t, hasThread)
}

func TestConnectSocketUsesAppToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/apps.connections.open", r.URL.Path)
		assert.Equal(t, "Bearer xapp-app", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "xoxb-bot", "xapp-app")
	_, err := api.ConnectSocket(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_auth")
}
