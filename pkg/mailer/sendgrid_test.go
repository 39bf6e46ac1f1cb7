package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewSendgridTransportRequiresKey(t *testing.T) {
	_, err := NewSendgridTransport(Config{FromEmail: "alerts@example.com"}, zerolog.Nop())
	require.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewSendgridTransport(Config{APIKey: "key"}, zerolog.Nop())
	require.Error(t, err)
}

func TestSendgridTransportSend(t *testing.T) {
	var payload map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/mail/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	transport, err := NewSendgridTransport(Config{
		APIKey:    "sg-key",
		FromName:  "Risk Desk",
		FromEmail: "alerts@example.com",
		Host:      server.URL,
	}, zerolog.Nop())
	require.NoError(t, err)

	err = transport.Send(context.Background(), "asha@example.com", "Alert", "plain body", "<p>html body</p>")
	require.NoError(t, err)
	require.Equal(t, "Bearer sg-key", auth)

	from := payload["from"].(map[string]any)
	require.Equal(t, "alerts@example.com", from["email"])

	personalizations := payload["personalizations"].([]any)
	require.Len(t, personalizations, 1)
	first := personalizations[0].(map[string]any)
	require.Equal(t, "Alert", first["subject"])

	content := payload["content"].([]any)
	require.Len(t, content, 2)
	require.Equal(t, "text/plain", content[0].(map[string]any)["type"])
	require.Equal(t, "<p>html body</p>", content[1].(map[string]any)["value"])
}

func TestSendgridTransportRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer server.Close()

	transport, err := NewSendgridTransport(Config{APIKey: "bad", FromEmail: "alerts@example.com", Host: server.URL}, zerolog.Nop())
	require.NoError(t, err)

	err = transport.Send(context.Background(), "asha@example.com", "Alert", "text", "html")
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}
