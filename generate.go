package reverie

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
	"github.com/rs/zerolog"
)

// OpenAIGenerator produces replies through the Responses API.
// Implements Generator.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int64
	log       zerolog.Logger
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator builds a generator for model.
func NewOpenAIGenerator(client *openai.Client, model string, maxOutputTokens int64, logger zerolog.Logger) *OpenAIGenerator {
	if maxOutputTokens <= 0 {
		maxOutputTokens = 1500
	}
	return &OpenAIGenerator{client: client, model: model, maxTokens: maxOutputTokens, log: logger}
}

// Generate sends the system prompt as instructions, then the history and
// the user message as input items. Errors wrap ErrGenerationFailure.
func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(req.History)+1)
	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, inputRole(m.Role)))
	}
	items = append(items, responses.ResponseInputItemParamOfMessage(req.UserMessage, responses.EasyInputMessageRoleUser))

	params := responses.ResponseNewParams{
		Model:           g.model,
		MaxOutputTokens: openai.Int(g.maxTokens),
		Instructions:    openai.String(req.SystemPrompt),
		Temperature:     openai.Float(req.Temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}

	resp, err := g.client.Responses.New(ctx, params)
	if err != nil {
		g.log.Error().Err(err).Int("status", apiStatus(err)).Msg("generation call failed")
		return "", errors.Join(ErrGenerationFailure, err)
	}
	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", errors.Join(ErrGenerationFailure, errors.New("empty response"))
	}
	return text, nil
}

func inputRole(r Role) responses.EasyInputMessageRole {
	switch r {
	case RoleAssistant:
		return responses.EasyInputMessageRoleAssistant
	case RoleSystem:
		return responses.EasyInputMessageRoleSystem
	default:
		return responses.EasyInputMessageRoleUser
	}
}
