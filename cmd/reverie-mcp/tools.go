package main

import (
	"context"
	"fmt"

	"github.com/goblincore/reverie"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// --- Input types ---

type chatInput struct {
	Message string `json:"message" jsonschema:"What the user said"`
}

type recallInput struct {
	Query  string `json:"query"            jsonschema:"Text to find memories for"`
	Intent string `json:"intent,omitempty" jsonschema:"Optional intent such as memory_recall or intimate (default casual_chat)"`
}

type teachTriggerInput struct {
	Trigger string   `json:"trigger"           jsonschema:"Phrase matched case-insensitively anywhere in a message"`
	Tone    string   `json:"tone,omitempty"    jsonschema:"Tone label, e.g. нежный"`
	Emotion []string `json:"emotion,omitempty" jsonschema:"Emotion labels"`
	Subtone []string `json:"subtone,omitempty" jsonschema:"Subtone labels"`
	Flavor  []string `json:"flavor,omitempty"  jsonschema:"Flavor labels"`
}

type teachEmotionInput struct {
	Phrase  string   `json:"phrase"            jsonschema:"Phrase to associate with the state"`
	Tone    string   `json:"tone,omitempty"    jsonschema:"Tone label"`
	Emotion []string `json:"emotion,omitempty" jsonschema:"Emotion labels"`
	Subtone []string `json:"subtone,omitempty" jsonschema:"Subtone labels"`
	Flavor  []string `json:"flavor,omitempty"  jsonschema:"Flavor labels"`
}

type inspectStateInput struct{}

type getMemoryInput struct {
	ID string `json:"id" jsonschema:"Fragment id from a semantic recall result"`
}

type listLabelsInput struct {
	Kind string `json:"kind" jsonschema:"One of tone, subtone, flavor, emotion"`
}

type searchHistoryInput struct {
	Query string `json:"query" jsonschema:"Keywords to search the conversation log for"`
}

// --- Handlers ---

func chatHandler(c *reverie.Companion) func(context.Context, *mcp.CallToolRequest, chatInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input chatInput) (*mcp.CallToolResult, any, error) {
		if input.Message == "" {
			return textResult(`{"error": "message is required"}`), nil, nil
		}
		res := c.HandleTurn(ctx, input.Message)

		stages := make([]map[string]any, len(res.Stages))
		for i, s := range res.Stages {
			m := map[string]any{"stage": s.Stage, "outcome": s.Outcome.String()}
			if s.Err != nil {
				m["error"] = s.Err.Error()
			}
			stages[i] = m
		}
		return textResult(jsonString(map[string]any{
			"response":    res.Response,
			"failed":      res.Failed,
			"intent":      res.Intent,
			"state":       res.State,
			"temperature": res.Temperature,
			"memories":    len(res.Fragments),
			"stages":      stages,
		})), nil, nil
	}
}

func recallHandler(c *reverie.Companion) func(context.Context, *mcp.CallToolRequest, recallInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input recallInput) (*mcp.CallToolResult, any, error) {
		res := c.Recall(ctx, input.Query, reverie.ParseIntent(input.Intent))
		return textResult(jsonString(map[string]any{
			"tier":        res.Tier,
			"token_usage": res.TokenUsage,
			"fragments":   res.Fragments,
		})), nil, nil
	}
}

func teachTriggerHandler(c *reverie.Companion) func(context.Context, *mcp.CallToolRequest, teachTriggerInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input teachTriggerInput) (*mcp.CallToolResult, any, error) {
		if err := c.TeachTrigger(input.Trigger, reverie.EmotionalState{
			Tone: input.Tone, Emotion: input.Emotion, Subtone: input.Subtone, Flavor: input.Flavor,
		}); err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{"trigger": input.Trigger, "status": "stored"})), nil, nil
	}
}

func teachEmotionHandler(c *reverie.Companion) func(context.Context, *mcp.CallToolRequest, teachEmotionInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input teachEmotionInput) (*mcp.CallToolResult, any, error) {
		changed, err := c.TeachEmotion(input.Phrase, reverie.EmotionalState{
			Tone: input.Tone, Emotion: input.Emotion, Subtone: input.Subtone, Flavor: input.Flavor,
		})
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		status := "unchanged"
		if changed {
			status = "stored"
		}
		return textResult(jsonString(map[string]any{"phrase": reverie.Normalize(input.Phrase), "status": status})), nil, nil
	}
}

func inspectStateHandler(c *reverie.Companion) func(context.Context, *mcp.CallToolRequest, inspectStateInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input inspectStateInput) (*mcp.CallToolResult, any, error) {
		st, err := c.State()
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		stats, err := c.Stats()
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		messages, err := c.MessageCount()
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"state":      st,
			"autonomous": c.Engine.Autonomous(),
			"messages":   messages,
			"history":    len(c.Conversation.History()),
			"summaries":  len(c.Conversation.Summaries()),
			"fragments":  stats.Fragments,
			"vectors":    stats.Vectors,
		})), nil, nil
	}
}

func searchHistoryHandler(c *reverie.Companion) func(context.Context, *mcp.CallToolRequest, searchHistoryInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input searchHistoryInput) (*mcp.CallToolResult, any, error) {
		matches, err := c.SearchHistory(input.Query)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(matches)), nil, nil
	}
}

func getMemoryHandler(c *reverie.Companion) func(context.Context, *mcp.CallToolRequest, getMemoryInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input getMemoryInput) (*mcp.CallToolResult, any, error) {
		f, err := c.Memory(input.ID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(f)), nil, nil
	}
}

func listLabelsHandler(c *reverie.Companion) func(context.Context, *mcp.CallToolRequest, listLabelsInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input listLabelsInput) (*mcp.CallToolResult, any, error) {
		kind := reverie.LabelKind(input.Kind)
		switch kind {
		case reverie.KindTone, reverie.KindSubtone, reverie.KindFlavor, reverie.KindEmotion:
		default:
			return textResult(fmt.Sprintf("error: unknown label kind %q", input.Kind)), nil, nil
		}
		return textResult(jsonString(c.Labels(kind))), nil, nil
	}
}
