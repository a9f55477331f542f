package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type TimeArgs struct {
	Timezone string `json:"timezone"`
}

type TimeTool struct {
	BaseTool
	now func() time.Time
}

func NewTimeTool() *TimeTool {
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"timezone": {
				Type:        jsonschema.String,
				Description: "IANA timezone name such as Asia/Seoul or America/New_York (default: UTC)",
			},
		},
	}

	return &TimeTool{
		BaseTool: BaseTool{
			ToolName:        "get_current_time",
			ToolDescription: "Get the current local date and time in a timezone",
			ToolParameters:  params,
		},
		now: time.Now,
	}
}

func (t *TimeTool) Execute(ctx context.Context, args string) (string, error) {
	var params TimeArgs
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %v", err)
	}

	name := strings.TrimSpace(params.Timezone)
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", fmt.Errorf("unknown timezone %q", name)
	}

	local := t.now().In(loc)
	return fmt.Sprintf("The current local time in %s is: %s", name, local.Format("2006-01-02 15:04:05 MST (Monday)")), nil
}
