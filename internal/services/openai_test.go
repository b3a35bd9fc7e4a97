package services_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProcess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "Hello", req.Messages[1].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"Hi"}}]}`)
	}))
	defer srv.Close()

	o := services.NewOpenAI("secret", srv.URL+"/v1", "gpt-test", "Be brief.", discardLogger())
	reply, err := o.Process(context.Background(), "Hello")
	require.NoError(t, err)
	assert.True(t, reply.Succeeded())
	assert.Equal(t, "Hi", reply.Answer)
	assert.Equal(t, "chatcmpl-1", reply.JobID)
	assert.Empty(t, reply.VideoFile)
}

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "en", r.FormValue("language"))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"  Hello there  "}`)
	}))
	defer srv.Close()

	wh := services.NewWhisper("secret", srv.URL+"/v1", "", "en-US", discardLogger())
	text, err := wh.Transcribe(context.Background(), strings.NewReader("fake-audio"), "speech.webm")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
}
