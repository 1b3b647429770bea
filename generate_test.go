package reverie

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGeneratorGenerate(t *testing.T) {
	client, calls := responsesServer(t, 0, "  и я скучала  ")
	g := NewOpenAIGenerator(client, "gpt-test", 0, zerolog.Nop())

	reply, err := g.Generate(t.Context(), GenerateRequest{
		SystemPrompt: "Ты Астра.",
		History: []ConversationMessage{
			{Role: RoleUser, Content: "привет"},
			{Role: RoleAssistant, Content: ""},
			{Role: RoleAssistant, Content: "привет, родной"},
		},
		UserMessage: "я скучал",
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "и я скучала", reply)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIGeneratorFailure(t *testing.T) {
	client, _ := responsesServer(t, http.StatusInternalServerError, "")
	g := NewOpenAIGenerator(client, "gpt-test", 0, zerolog.Nop())

	_, err := g.Generate(t.Context(), GenerateRequest{UserMessage: "привет"})
	assert.ErrorIs(t, err, ErrGenerationFailure)
}

func TestOpenAIGeneratorEmptyReply(t *testing.T) {
	client, _ := responsesServer(t, 0, "   ")
	g := NewOpenAIGenerator(client, "gpt-test", 0, zerolog.Nop())

	_, err := g.Generate(t.Context(), GenerateRequest{UserMessage: "привет"})
	assert.ErrorIs(t, err, ErrGenerationFailure)
}
