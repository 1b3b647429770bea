package reverie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"golang.org/x/time/rate"
)

// NewOpenAIClient builds a client from cfg. The SDK performs the bounded
// retry itself; MaxRetries < 0 disables it.
func NewOpenAIClient(cfg OpenAIConfig) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	opts = append(opts, option.WithMaxRetries(retries))
	return openai.NewClient(opts...)
}

// structuredCall sends one user message and decodes the model's JSON reply
// into out. The reply is constrained by schema in strict mode.
func structuredCall(ctx context.Context, client *openai.Client, limiter *rate.Limiter, model, name, instructions, input string, schema map[string]any, maxOut int64, out any) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	params := responses.ResponseNewParams{
		Model:           model,
		MaxOutputTokens: openai.Int(maxOut),
		Instructions:    openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        name,
					Schema:      schema,
					Strict:      openai.Bool(true),
					Description: openai.String(name + " JSON"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := client.Responses.New(ctx, params)
	if err != nil {
		return err
	}
	if err := decodeModelJSON(resp.OutputText(), out); err != nil {
		return fmt.Errorf("unmarshal %s: %w (model_output_prefix=%q)", name, err, truncateRunes(resp.OutputText(), 200, "…"))
	}
	return nil
}

// apiStatus extracts the HTTP status of an OpenAI API error, or 0.
func apiStatus(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	ensureOpenAICompliance(m)
	return m
}

// ensureOpenAICompliance marks every object property required and closes
// additionalProperties, as strict structured output demands.
func ensureOpenAICompliance(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			var required []string
			for name := range props {
				required = append(required, name)
			}
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				ensureOpenAICompliance(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		ensureOpenAICompliance(items)
	}
}

// decodeModelJSON unmarshals JSON from a model response, tolerating text
// wrapped around the object. Arrays are extracted only when v is a slice.
func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		start := strings.IndexByte(s, '[')
		end := strings.LastIndexByte(s, ']')
		if start != -1 && end > start {
			return json.Unmarshal([]byte(s[start:end+1]), v)
		}
		return fmt.Errorf("no JSON array found in model output (len=%d)", len(s))
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start != -1 && end == -1 {
		return io.ErrUnexpectedEOF
	}
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}
	sub := s[start : end+1]
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}
