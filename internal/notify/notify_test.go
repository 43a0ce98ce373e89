package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/ideaflow/internal/config"
)

func TestTelegram_SendsMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	NewTelegram("TOKEN", "42", nil).WithBaseURL(srv.URL).Notify(context.Background(), "*Built* #7")

	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Built* #7", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])
}

func TestTelegram_FailureIsLoggedOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	NewTelegram("x", "1", logger).WithBaseURL(srv.URL).Notify(context.Background(), "hi")

	assert.Contains(t, buf.String(), "telegram notification failed")
	assert.Contains(t, buf.String(), "HTTP 401")
}

func TestNew(t *testing.T) {
	_, ok := New(config.Notify{}, nil).(Nop)
	assert.True(t, ok)

	n := New(config.Notify{TelegramToken: "t", TelegramChatID: "c"}, nil)
	_, ok = n.(*Telegram)
	assert.True(t, ok)
}
