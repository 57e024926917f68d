package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubServer returns a Chat Completions endpoint whose single choice carries
// the given content, and records the last request body it saw.
func stubServer(t *testing.T, content string) (*httptest.Server, *[]byte) {
	t.Helper()
	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		lastBody = body

		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "/chat/completions", r.URL.Path)

		payload, err := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &lastBody
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
	client, err := NewClient(WithBaseURL(baseURL))
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	require.Error(t, err)
}

func TestClassifyIntentLabels(t *testing.T) {
	cases := []struct {
		raw  string
		want Intent
	}{
		{"confirm", IntentConfirm},
		{" Confirm \n", IntentConfirm},
		{`"correction"`, IntentCorrection},
		{"unclear", IntentUnclear},
		{"maybe", IntentUnclear},        // anything off-label is unclear
		{"CONFIRMATION", IntentUnclear}, // close is not good enough
		{"", IntentUnclear},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("label_%q", tc.raw), func(t *testing.T) {
			srv, lastBody := stubServer(t, tc.raw)
			client := newTestClient(t, srv.URL)

			intent, err := client.ClassifyIntent(context.Background(), "yes", nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, intent)

			// Classification pins temperature to zero
			var req map[string]interface{}
			require.NoError(t, json.Unmarshal(*lastBody, &req))
			require.Equal(t, 0.0, req["temperature"])
		})
	}
}

func TestClassifyIntentUpstreamErrorReturnsUnclear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv.URL)

	intent, err := client.ClassifyIntent(context.Background(), "yes", nil)
	require.Error(t, err)
	require.Equal(t, IntentUnclear, intent)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestRespond(t *testing.T) {
	srv, lastBody := stubServer(t, "  Sure, should we change the address or the time?  ")
	client := newTestClient(t, srv.URL)

	history := []ChatMessage{
		{Role: "assistant", Content: "Hi Maria, delivering to 42 Elm Street at 2pm."},
		{Role: "user", Content: "hmm"},
	}
	reply, err := client.Respond(context.Background(), history)
	require.NoError(t, err)
	require.Equal(t, "Sure, should we change the address or the time?", reply)

	var req struct {
		Messages []ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(*lastBody, &req))
	require.Equal(t, "system", req.Messages[0].Role)
	require.Equal(t, "user", req.Messages[len(req.Messages)-1].Role)
}

func TestRespondEmptyReplyIsError(t *testing.T) {
	srv, _ := stubServer(t, "   ")
	client := newTestClient(t, srv.URL)

	_, err := client.Respond(context.Background(), nil)
	require.Error(t, err)
}

func TestExtractCorrection(t *testing.T) {
	srv, lastBody := stubServer(t, `{"delivery_address":"123 Main St","delivery_time":null}`)
	client := newTestClient(t, srv.URL)

	correction, err := client.ExtractCorrection(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, correction.DeliveryAddress)
	require.Equal(t, "123 Main St", *correction.DeliveryAddress)
	require.Nil(t, correction.DeliveryTime)
	require.False(t, correction.Empty())

	// Extraction requests the strict JSON schema
	var req struct {
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	require.NoError(t, json.Unmarshal(*lastBody, &req))
	require.Equal(t, "json_schema", req.ResponseFormat.Type)
}

func TestExtractCorrectionEmptyPayload(t *testing.T) {
	srv, _ := stubServer(t, `{"delivery_address":null,"delivery_time":null}`)
	client := newTestClient(t, srv.URL)

	correction, err := client.ExtractCorrection(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, correction.Empty())
}

func TestExtractCorrectionMalformedOutputIsError(t *testing.T) {
	srv, _ := stubServer(t, "I think they want it at 123 Main St")
	client := newTestClient(t, srv.URL)

	_, err := client.ExtractCorrection(context.Background(), nil)
	require.Error(t, err)
}
