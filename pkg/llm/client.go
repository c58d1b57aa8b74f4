// Package llm sends the conversation to an OpenAI-compatible chat completion
// endpoint in JSON mode.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/minhyannv/weather-agent-go/pkg/conversation"
	loggerpkg "github.com/minhyannv/weather-agent-go/pkg/logger"
	"github.com/minhyannv/weather-agent-go/pkg/protocol"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gpt-4o"

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  loggerpkg.Logger
	Verbose bool
}

// Client requests one structured reply per call. Network calls are not
// retried.
type Client struct {
	client  openai.Client
	model   string
	logger  loggerpkg.Logger
	verbose bool
}

// New builds a Client with configuration from opts.
func New(opts Options) *Client {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	logger := opts.Logger
	if logger == nil {
		logger = loggerpkg.NopLogger{}
	}
	return &Client{
		client:  newOpenAIClient(opts),
		model:   model,
		logger:  logger,
		verbose: opts.Verbose,
	}
}

func newOpenAIClient(opts Options) openai.Client {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	return openai.NewClient(reqOpts...)
}

// Complete sends the instructions and history and returns the raw content of
// the first choice. The content is untrusted; callers decode it.
func (c *Client) Complete(ctx context.Context, instructions string, history []conversation.Entry) (string, error) {
	messages, err := BuildMessages(instructions, history)
	if err != nil {
		return "", err
	}

	loggerpkg.Debug(c.verbose, c.logger, "chat completion request", map[string]any{
		"model":    c.model,
		"messages": len(messages),
	})
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("empty completion choices")
	}
	choice := completion.Choices[0]
	loggerpkg.Debug(c.verbose, c.logger, "chat completion received", map[string]any{
		"choices":       len(completion.Choices),
		"finish_reason": choice.FinishReason,
		"bytes":         len(choice.Message.Content),
	})
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", fmt.Errorf("empty completion content (finish_reason=%s)", choice.FinishReason)
	}
	return choice.Message.Content, nil
}

// BuildMessages replays every entry verbatim in wire form. The author picks
// the chat role: user entries as user, model entries as assistant, tool
// entries as system.
func BuildMessages(instructions string, history []conversation.Entry) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if strings.TrimSpace(instructions) != "" {
		messages = append(messages, openai.SystemMessage(instructions))
	}
	for i, entry := range history {
		raw, err := protocol.Encode(entry.Message)
		if err != nil {
			return nil, fmt.Errorf("encode entry %d: %w", i, err)
		}
		content := string(raw)
		switch entry.Author {
		case conversation.AuthorUser:
			messages = append(messages, openai.UserMessage(content))
		case conversation.AuthorModel:
			messages = append(messages, openai.AssistantMessage(content))
		case conversation.AuthorTool:
			messages = append(messages, openai.SystemMessage(content))
		default:
			return nil, fmt.Errorf("entry %d: unknown author %q", i, entry.Author)
		}
	}
	return messages, nil
}
