package matcher

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// NewChatCompletionClientOptions configures the OpenAI-compatible client.
type NewChatCompletionClientOptions struct {
	// Endpoint is the chat completions base URL. Empty uses the default.
	Endpoint string
	// APIKey overrides the OPENAI_API_KEY environment variable when set.
	APIKey string
}

// ChatCompletionClient is the production ChatClient over an OpenAI-compatible
// chat completions endpoint.
type ChatCompletionClient struct {
	client openai.Client
}

// NewChatCompletionClient creates a chat completions client.
func NewChatCompletionClient(options NewChatCompletionClientOptions) *ChatCompletionClient {
	var opts []option.RequestOption
	if options.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(options.Endpoint))
	}
	if options.APIKey != "" {
		opts = append(opts, option.WithAPIKey(options.APIKey))
	}
	c := openai.NewClient(opts...)
	return &ChatCompletionClient{client: c}
}

// Complete sends the role-tagged turns to the model and returns the raw
// completion with token usage. Example turns map onto alternating user and
// assistant messages, the convention chat completion endpoints expect for
// few-shot prompts.
func (c *ChatCompletionClient) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns))
	for _, turn := range req.Turns {
		switch turn.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case RoleExampleUser, RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case RoleExampleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("error calling chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return &ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
