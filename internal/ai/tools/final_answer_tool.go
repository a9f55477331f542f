package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// FinalAnswerToolName is the tool whose call ends the loop.
const FinalAnswerToolName = "final_answer"

type FinalAnswerArgs struct {
	Answer string `json:"answer"`
}

type FinalAnswerTool struct {
	BaseTool
}

func NewFinalAnswerTool() *FinalAnswerTool {
	return &FinalAnswerTool{
		BaseTool: BaseTool{
			ToolName:        FinalAnswerToolName,
			ToolDescription: "Provide the final answer to the user's request and stop.",
			ToolParameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"answer": {
						Type:        jsonschema.String,
						Description: "The complete final answer, written for the user",
					},
				},
				Required: []string{"answer"},
			},
		},
	}
}

func (t *FinalAnswerTool) Execute(ctx context.Context, args string) (string, error) {
	var params FinalAnswerArgs
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %v", err)
	}
	answer := CleanString(params.Answer)
	if answer == "" {
		return "", fmt.Errorf("answer is required")
	}
	return answer, nil
}
