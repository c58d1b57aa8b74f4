// Package prompt assembles the protocol instructions given to the model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/minhyannv/weather-agent-go/pkg/protocol"
	"github.com/minhyannv/weather-agent-go/pkg/tools"
)

// BuildSystemPrompt constructs the protocol instructions, including the tool
// list and a worked example.
func BuildSystemPrompt(specs []tools.Spec) string {
	var sb strings.Builder
	sb.WriteString("You are an AI Assistant with a structured approach: START, PLAN, ACTION, OBSERVATION, and OUTPUT.\n\n")
	sb.WriteString("Wait for the user prompt, then:\n")
	sb.WriteString("1. PLAN using available tools.\n")
	sb.WriteString("2. Take ACTION using the tools.\n")
	sb.WriteString("3. Wait for the OBSERVATION carrying the tool result.\n")
	sb.WriteString("4. Return the AI response as OUTPUT.\n\n")
	sb.WriteString("Reply with exactly one JSON object per turn. Its \"type\" is one of plan, action, or output.\n")
	sb.WriteString("Never emit user or observation messages yourself.\n")

	if md := ToPromptMarkdown(specs); md != "" {
		sb.WriteString("\n")
		sb.WriteString(md)
		sb.WriteString("\n")
	}

	if len(specs) > 0 {
		sb.WriteString("\nFormat your JSON output strictly as in the example below:\n\n")
		sb.WriteString(exampleTranscript(specs[0].Name))
	}

	return strings.TrimSpace(sb.String())
}

// ToPromptMarkdown renders a markdown listing of available tools.
func ToPromptMarkdown(specs []tools.Spec) string {
	if len(specs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Available Tools\n")
	for _, spec := range specs {
		name := sanitizeMarkdown(spec.Name)
		desc := sanitizeMarkdown(spec.Description)
		input := sanitizeMarkdown(spec.Input)
		if desc == "" {
			desc = "No description provided."
		}
		sb.WriteString(fmt.Sprintf("- %s(%s): %s\n", name, input, desc))
	}
	return strings.TrimSpace(sb.String())
}

func exampleTranscript(toolName string) string {
	steps := []protocol.Message{
		protocol.User{Text: "What is the weather like in Bengaluru?"},
		protocol.Plan{Text: "I will call " + toolName + " for Bengaluru"},
		protocol.Action{Function: toolName, Input: "Bengaluru"},
		protocol.Observation{Function: toolName, Result: map[string]any{
			"temperature": 29.54,
			"description": "few clouds",
			"humidity":    23,
			"windSpeed":   5.53,
		}},
		protocol.Output{Text: "The weather in Bengaluru is currently 29.54°C with few clouds. Humidity is at 23% and the wind speed is 5.53 m/s."},
	}

	var sb strings.Builder
	sb.WriteString("START\n")
	for _, step := range steps {
		sb.WriteString(protocol.MustEncode(step))
		sb.WriteString("\n")
	}
	return sb.String()
}

// sanitizeMarkdown keeps markdown fields single-line and trimmed.
func sanitizeMarkdown(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.TrimSpace(value)
}
