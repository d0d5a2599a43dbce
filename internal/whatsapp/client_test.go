package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTextPostsGraphPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token-abc", "12345", time.Second, nil)
	require.NoError(t, client.SendText(context.Background(), "+263785019494", "hello"))

	assert.Equal(t, "whatsapp", got["messaging_product"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "hello", got["text"].(map[string]any)["body"])
}

func TestSendButtonsBuildsInteractivePayload(t *testing.T) {
	var got interactiveMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", "12345", time.Second, nil)
	require.NoError(t, client.SendButtons(context.Background(), "+263785019494", "Pick", []Option{
		{ID: "yes", Label: "Yes"},
		{ID: "no", Label: "No"},
	}))

	assert.Equal(t, "interactive", got.Type)
	assert.Equal(t, "button", got.Interactive.Type)
	require.Len(t, got.Interactive.Action.Buttons, 2)
	assert.Equal(t, "yes", got.Interactive.Action.Buttons[0].Reply.ID)
}

func TestAPIErrorIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","type":"OAuthException","code":100}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", "12345", time.Second, nil)
	err := client.SendText(context.Background(), "+263785019494", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid parameter")
	assert.Contains(t, err.Error(), "code 100")
}

func TestFetchMediaTwoStepDownload(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/media-id-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(mediaLookupResponse{
			URL:      srv.URL + "/download/blob",
			MimeType: "image/jpeg",
			ID:       "media-id-1",
		})
	})
	mux.HandleFunc("/download/blob", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "t", "12345", time.Second, nil)
	data, contentType, err := client.FetchMedia(context.Background(), "media-id-1")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xe0}, data)
}

func TestFetchMediaLookupFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t", "12345", time.Second, nil)
	_, _, err := client.FetchMedia(context.Background(), "gone")
	assert.Error(t, err)
}
