// Package ai turns free-text task descriptions into task drafts using
// the Claude Messages API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/cyclic-tasks/internal/model"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
	defaultAPIURL    = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
	requestTimeout   = 30 * time.Second
)

// ErrNoTask is returned when the model did not produce a task.
var ErrNoTask = errors.New("no task could be parsed from the input")

// Parser calls the Claude API to extract a task from free text.
type Parser struct {
	apiKey    string
	apiURL    string
	model     string
	maxTokens int
	client    *http.Client
}

// NewParser creates a Parser. Empty modelName and non-positive maxTokens
// select defaults.
func NewParser(apiKey, modelName string, maxTokens int) *Parser {
	if modelName == "" {
		modelName = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Parser{
		apiKey:    apiKey,
		apiURL:    defaultAPIURL,
		model:     modelName,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: requestTimeout},
	}
}

// WithBaseURL points the parser at another Messages API endpoint.
func (p *Parser) WithBaseURL(url string) *Parser {
	p.apiURL = url
	return p
}

// Parse extracts a task draft from text. The draft is not validated;
// callers create it through the normal task path.
func (p *Parser) Parse(ctx context.Context, text string) (model.TaskDraft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.TaskDraft{}, ErrNoTask
	}

	resp, err := p.callAPI(ctx, text)
	if err != nil {
		return model.TaskDraft{}, err
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name != createTaskTool {
			continue
		}
		var parsed parsedTask
		if err := json.Unmarshal(block.Input, &parsed); err != nil {
			return model.TaskDraft{}, fmt.Errorf("decoding %s input: %w", createTaskTool, err)
		}
		if strings.TrimSpace(parsed.Title) == "" {
			return model.TaskDraft{}, ErrNoTask
		}
		return toDraft(parsed), nil
	}

	return model.TaskDraft{}, ErrNoTask
}

// toDraft maps the tool input onto a draft. Unknown frequencies fall
// back to MONTHLY and unknown types to BOOLEAN.
func toDraft(p parsedTask) model.TaskDraft {
	d := model.TaskDraft{
		Title:          strings.TrimSpace(p.Title),
		Description:    p.Description,
		Group:          p.Group,
		Unit:           p.Unit,
		Frequency:      model.Frequency(strings.ToUpper(p.Frequency)),
		CustomInterval: p.CustomInterval,
		Type:           model.TaskType(strings.ToUpper(p.Type)),
		TargetValue:    p.TargetValue,
		DeadlineDay:    p.DeadlineDay,
		DeadlineMonth:  p.DeadlineMonth,
	}
	if d.Group == "" {
		d.Group = model.DefaultGroup
	}
	if !d.Frequency.Valid() {
		d.Frequency = model.FrequencyMonthly
	}
	if !d.Type.Valid() {
		d.Type = model.TaskTypeBoolean
	}

	period := model.LimitPeriod(strings.ToUpper(p.LimitPeriod))
	if period.Valid() && p.LimitCount > 0 {
		d.LimitConfig = &model.LimitConfig{Period: period, Count: p.LimitCount}
	}
	return d
}

// callAPI makes a single request to the Claude Messages API, forcing the
// create_task tool.
func (p *Parser) callAPI(ctx context.Context, text string) (*apiResponse, error) {
	reqBody := apiRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    systemPrompt,
		Messages: []apiMessage{
			{Role: "user", Content: []apiContentBlock{{Type: "text", Text: text}}},
		},
		Tools:      toolDefinitions(),
		ToolChoice: &apiToolChoice{Type: "tool", Name: createTaskTool},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, p.apiURL, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &result, nil
}

const systemPrompt = `You extract recurring tasks or goals from the user's input and call create_task exactly once.

Rules:
- group: the task category (for example Life, Finance, Health, Work). Use "Default" when unclear.
- frequency: DAILY, WEEKLY, MONTHLY, QUARTERLY, YEARLY or CUSTOM. For CUSTOM set customInterval in days.
- type: NUMERIC when there is a numeric target, otherwise BOOLEAN.
- unit: the unit of the target (times, km, dollars, days), if any.
- Limits: a check-in style goal such as "check in 10 days a month" allows one contribution per day, so use limitPeriod DAILY with limitCount 1. "X times a year, once a month" means limitPeriod MONTHLY with limitCount 1. Omit the limit when none is implied.
- Deadlines: WEEKLY uses deadlineDay Monday=1 through Sunday=7. MONTHLY uses deadlineDay 1-31. YEARLY uses deadlineMonth and deadlineDay.`
