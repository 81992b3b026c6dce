package grammar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mdnotes/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type geminiReply struct {
	status int
	body   string
}

func geminiError(code int, status, message string) geminiReply {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{"code": code, "message": message, "status": status},
	})
	return geminiReply{status: code, body: string(body)}
}

func geminiText(text string) geminiReply {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": text}},
			},
			"finishReason": "STOP",
		}},
	})
	return geminiReply{status: http.StatusOK, body: string(body)}
}

// newGeminiServer answers with replies in order, repeating the last one.
func newGeminiServer(t *testing.T, replies ...geminiReply) (*Gemini, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent"), r.URL.Path)

		reply := replies[len(replies)-1]
		if n < len(replies) {
			reply = replies[n]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.status)
		w.Write([]byte(reply.body))
	}))
	t.Cleanup(server.Close)

	gem, err := NewGemini(context.Background(), "test-key", "test-model", server.URL)
	require.NoError(t, err)
	return gem, &calls
}

func TestGeminiGenerate(t *testing.T) {
	gem, calls := newGeminiServer(t, geminiText(`{"correctedText":"Fine.","issues":[]}`))

	text, err := gem.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"correctedText":"Fine.","issues":[]}`, text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiMapsAPIErrorToStatusError(t *testing.T) {
	cases := map[string]struct {
		reply     geminiReply
		code      int
		transient bool
	}{
		"rate limited": {geminiError(429, "RESOURCE_EXHAUSTED", "quota exceeded"), 429, true},
		"internal":     {geminiError(500, "INTERNAL", "backend error"), 500, true},
		"unavailable":  {geminiError(503, "UNAVAILABLE", "overloaded"), 503, true},
		"bad request":  {geminiError(400, "INVALID_ARGUMENT", "bad prompt"), 400, false},
		"forbidden":    {geminiError(403, "PERMISSION_DENIED", "bad key"), 403, false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gem, _ := newGeminiServer(t, tc.reply)

			_, err := gem.Generate(context.Background(), "prompt")
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, "gemini", statusErr.Service)
			assert.Equal(t, tc.code, statusErr.Code)
			assert.Equal(t, tc.transient, statusErr.Transient())
			assert.Equal(t, tc.transient, IsTransient(err))
		})
	}
}

func TestRemoteEngineRetriesTransientGeminiErrors(t *testing.T) {
	for _, failure := range []geminiReply{
		geminiError(429, "RESOURCE_EXHAUSTED", "quota exceeded"),
		geminiError(503, "UNAVAILABLE", "overloaded"),
	} {
		gem, calls := newGeminiServer(t, failure, geminiText(`{"correctedText":"Fine.","issues":[]}`))

		c, err := NewRemoteEngine(gem, WithBackoff(time.Millisecond)).Correct(context.Background(), "Fine.")
		require.NoError(t, err)
		assert.Equal(t, "Fine.", c.CorrectedText)
		assert.Empty(t, c.Issues)
		assert.Equal(t, int32(2), calls.Load())
	}
}

func TestRemoteEngineDoesNotRetryGeminiClientErrors(t *testing.T) {
	gem, calls := newGeminiServer(t, geminiError(400, "INVALID_ARGUMENT", "bad prompt"))

	c, err := NewRemoteEngine(gem, WithBackoff(time.Millisecond)).Correct(context.Background(), "Fine.")
	assert.ErrorIs(t, err, common.ErrRemoteServiceUnavailable)
	assert.Nil(t, c)
	assert.Equal(t, int32(1), calls.Load())
}
