package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/models"
)

// Avatar is the default conversational backend. It posts the user's text to a remote service that answers
// with text and, optionally, a generated avatar video of the answer being spoken.
type Avatar struct {
	baseURL string

	client *http.Client

	logger *slog.Logger
}

type avatarRequest struct {
	UserText string `json:"userText"`
}

type avatarResponse struct {
	Status    string          `json:"status"`
	Answer    string          `json:"answer"`
	JobID     json.RawMessage `json:"jobId"`
	VideoFile json.RawMessage `json:"videoFile"`
}

const avatarProcessPath = "/process-speech"

// ErrUnsuccessfulStatus is returned when a backend answers with a status other than "Succeeded".
var ErrUnsuccessfulStatus = errors.New("backend reported unsuccessful status")

// NewAvatar creates a new Avatar backend for the given base URL. Requests are bounded only by the caller's
// context.
func NewAvatar(baseURL string, logger *slog.Logger) Avatar {
	return Avatar{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "avatar")),
	}
}

// Process sends text to the backend and returns its reply. A reply whose status is not "Succeeded" is
// returned together with an error wrapping ErrUnsuccessfulStatus, so callers can still log what the
// backend said.
func (a Avatar) Process(ctx context.Context, text string) (models.Reply, error) {
	resp, err := a.doRequest(ctx, text)
	if err != nil {
		return models.Reply{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	var res avatarResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return models.Reply{}, fmt.Errorf("error decoding response: %w", err)
	}

	reply := models.Reply{
		Status:    res.Status,
		Answer:    res.Answer,
		JobID:     rawString(res.JobID),
		VideoFile: rawString(res.VideoFile),
	}

	a.logger.Debug("Reply",
		slog.String("status", reply.Status),
		slog.String("jobID", reply.JobID),
		slog.String("videoFile", reply.VideoFile))

	if !reply.Succeeded() {
		return reply, fmt.Errorf("%w: %q", ErrUnsuccessfulStatus, reply.Status)
	}
	return reply, nil
}

func (a Avatar) doRequest(ctx context.Context, text string) (*http.Response, error) {
	jsonBody, err := json.Marshal(avatarRequest{UserText: text})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+avatarProcessPath, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// rawString stringifies a JSON scalar: strings are unquoted, null or absent values become empty,
// anything else keeps its JSON text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
