package ai

import "encoding/json"

// --- Claude API types ---

type apiRequest struct {
	Model      string         `json:"model"`
	MaxTokens  int            `json:"max_tokens"`
	System     string         `json:"system"`
	Messages   []apiMessage   `json:"messages"`
	Tools      []apiTool      `json:"tools,omitempty"`
	ToolChoice *apiToolChoice `json:"tool_choice,omitempty"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`

	// For text blocks
	Text string `json:"text,omitempty"`

	// For tool_use blocks
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type apiToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

const createTaskTool = "create_task"

// toolDefinitions returns the tool the model must call with the parsed
// task.
func toolDefinitions() []apiTool {
	return []apiTool{
		{
			Name:        createTaskTool,
			Description: "Create a recurring task or goal from the user's description.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title": {"type": "string"},
					"description": {"type": "string"},
					"group": {
						"type": "string",
						"description": "Task category such as Life, Finance, Health or Work"
					},
					"frequency": {
						"type": "string",
						"enum": ["DAILY", "WEEKLY", "MONTHLY", "QUARTERLY", "YEARLY", "CUSTOM"]
					},
					"customInterval": {
						"type": "integer",
						"description": "Cycle length in days when frequency is CUSTOM"
					},
					"type": {
						"type": "string",
						"enum": ["BOOLEAN", "NUMERIC"],
						"description": "NUMERIC when the goal has a numeric target, BOOLEAN for done/not done"
					},
					"targetValue": {"type": "number"},
					"unit": {"type": "string"},
					"deadlineDay": {
						"type": "integer",
						"description": "WEEKLY: Monday=1 through Sunday=7. MONTHLY and YEARLY: day of month 1-31"
					},
					"deadlineMonth": {"type": "integer", "minimum": 1, "maximum": 12},
					"limitPeriod": {"type": "string", "enum": ["DAILY", "WEEKLY", "MONTHLY"]},
					"limitCount": {"type": "integer", "minimum": 1}
				},
				"required": ["title", "frequency", "type", "targetValue"]
			}`),
		},
	}
}

// parsedTask is the create_task tool input.
type parsedTask struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Group          string  `json:"group"`
	Frequency      string  `json:"frequency"`
	CustomInterval int     `json:"customInterval"`
	Type           string  `json:"type"`
	TargetValue    float64 `json:"targetValue"`
	Unit           string  `json:"unit"`
	DeadlineDay    int     `json:"deadlineDay"`
	DeadlineMonth  int     `json:"deadlineMonth"`
	LimitPeriod    string  `json:"limitPeriod"`
	LimitCount     int     `json:"limitCount"`
}
