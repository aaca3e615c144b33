package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/cyclic-tasks/internal/model"
)

func fakeClaude(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ToolChoice)
		assert.Equal(t, createTaskTool, req.ToolChoice.Name)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func toolResponse(input string) string {
	return `{"id":"msg_1","type":"message","role":"assistant","stop_reason":"tool_use","content":[` +
		`{"type":"tool_use","id":"tu_1","name":"create_task","input":` + input + `}]}`
}

func TestParse(t *testing.T) {
	srv := fakeClaude(t, http.StatusOK, toolResponse(`{
		"title": "Gym check-in",
		"group": "Health",
		"frequency": "MONTHLY",
		"type": "NUMERIC",
		"targetValue": 10,
		"unit": "days",
		"deadlineDay": 28,
		"limitPeriod": "DAILY",
		"limitCount": 1
	}`))

	p := NewParser("test-key", "", 0).WithBaseURL(srv.URL)
	draft, err := p.Parse(context.Background(), "check in at the gym 10 days a month")
	require.NoError(t, err)

	assert.Equal(t, "Gym check-in", draft.Title)
	assert.Equal(t, "Health", draft.Group)
	assert.Equal(t, model.FrequencyMonthly, draft.Frequency)
	assert.Equal(t, model.TaskTypeNumeric, draft.Type)
	assert.Equal(t, 10.0, draft.TargetValue)
	assert.Equal(t, 28, draft.DeadlineDay)
	require.NotNil(t, draft.LimitConfig)
	assert.Equal(t, model.LimitConfig{Period: model.LimitDaily, Count: 1}, *draft.LimitConfig)
}

func TestParseDefaultsUnknownValues(t *testing.T) {
	srv := fakeClaude(t, http.StatusOK, toolResponse(`{
		"title": "Water plants",
		"frequency": "FORTNIGHTLY",
		"type": "CHECKBOX",
		"targetValue": 1,
		"limitPeriod": "HOURLY",
		"limitCount": 3
	}`))

	draft, err := NewParser("test-key", "", 0).WithBaseURL(srv.URL).Parse(context.Background(), "water the plants")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultGroup, draft.Group)
	assert.Equal(t, model.FrequencyMonthly, draft.Frequency)
	assert.Equal(t, model.TaskTypeBoolean, draft.Type)
	assert.Nil(t, draft.LimitConfig)
}

func TestParseAPIError(t *testing.T) {
	srv := fakeClaude(t, http.StatusUnauthorized,
		`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)

	_, err := NewParser("test-key", "", 0).WithBaseURL(srv.URL).Parse(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (401): invalid x-api-key")
}

func TestParseWithoutToolUse(t *testing.T) {
	srv := fakeClaude(t, http.StatusOK,
		`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"I can't tell."}]}`)

	_, err := NewParser("test-key", "", 0).WithBaseURL(srv.URL).Parse(context.Background(), "hmm")
	assert.True(t, errors.Is(err, ErrNoTask))
}

func TestParseEmptyInput(t *testing.T) {
	_, err := NewParser("test-key", "", 0).Parse(context.Background(), "   ")
	assert.True(t, errors.Is(err, ErrNoTask))
}
