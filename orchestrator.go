package reverie

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Apology is returned to the user when the reply could not be generated.
const Apology = "Прости, у меня сейчас не получается ответить. Давай попробуем ещё раз чуть позже."

// TurnResult is the outcome of one HandleTurn call.
type TurnResult struct {
	Response    string
	State       EmotionalState
	Temperature float64
	Intent      Intent
	Fragments   []MemoryFragment
	Stages      []StageReport
	// Failed is set when generation failed; Response is then Apology and
	// nothing was persisted.
	Failed bool
}

// Stage returns the report for one stage.
func (r TurnResult) Stage(s Stage) (StageReport, bool) {
	for _, rep := range r.Stages {
		if rep.Stage == s {
			return rep, true
		}
	}
	return StageReport{}, false
}

// Pipeline lists the collaborators of an Orchestrator. Engine, States,
// Conversation and Generator are required.
type Pipeline struct {
	Classifier   Classifier
	Retriever    *MemoryRetriever
	Engine       *EmotionEngine
	States       EmotionRepository
	Conversation *ConversationManager
	Prompts      *PromptAssembler
	Generator    Generator
	// Moments receives important exchanges. Optional.
	Moments VectorStore
}

// Orchestrator runs the per-turn pipeline:
// CLASSIFY, RETRIEVE_MEMORY, RESOLVE_EMOTION, SELECT_CONTEXT,
// ASSEMBLE_PROMPT, GENERATE, PERSIST. Turns are serialized.
type Orchestrator struct {
	mu sync.Mutex

	p       Pipeline
	prompt  PromptConfig
	timeout time.Duration
	log     zerolog.Logger
}

// NewOrchestrator validates the pipeline and fills optional collaborators
// with their offline defaults.
func NewOrchestrator(p Pipeline, cfg Config) (*Orchestrator, error) {
	switch {
	case p.Engine == nil:
		return nil, fmt.Errorf("reverie: orchestrator needs an emotion engine")
	case p.States == nil:
		return nil, fmt.Errorf("reverie: orchestrator needs an emotion repository")
	case p.Conversation == nil:
		return nil, fmt.Errorf("reverie: orchestrator needs a conversation manager")
	case p.Generator == nil:
		return nil, fmt.Errorf("reverie: orchestrator needs a generator")
	}
	cfg.ApplyDefaults()
	if p.Classifier == nil {
		p.Classifier = NewHeuristicClassifier()
	}
	if p.Prompts == nil {
		p.Prompts = NewPromptAssembler(cfg.Persona, p.Engine.Catalog(), cfg.Prompt, nil)
	}
	return &Orchestrator{p: p, prompt: cfg.Prompt, timeout: cfg.CallTimeout, log: cfg.Logger}, nil
}

// HandleTurn answers one user message. Only a generation failure fails the
// turn; every other stage degrades and the turn continues.
func (o *Orchestrator) HandleTurn(ctx context.Context, message string) TurnResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	var res TurnResult
	report := func(r StageReport) {
		res.Stages = append(res.Stages, r)
		if r.Outcome != OutcomeOK {
			o.log.Warn().Err(r.Err).Str("stage", string(r.Stage)).Str("outcome", r.Outcome.String()).Msg("stage degraded")
		}
	}

	// CLASSIFY
	cls, err := o.classify(ctx, message)
	if err != nil {
		cls = DefaultClassification()
		if !errors.Is(err, ErrClassificationUnavailable) {
			err = errors.Join(ErrClassificationUnavailable, err)
		}
		report(stageDegraded(StageClassify, err))
	} else {
		report(stageOK(StageClassify))
	}
	if cls.Style == nil {
		neutral := NeutralStyle()
		cls.Style = &neutral
	}
	res.Intent = cls.Intent

	// RETRIEVE_MEMORY
	var retrieved RetrievalResult
	if o.p.Retriever != nil {
		rctx, cancel := context.WithTimeout(ctx, o.timeout)
		retrieved = o.p.Retriever.Retrieve(rctx, message, cls.Intent, cls.MemoryHints)
		cancel()
	}
	res.Fragments = retrieved.Fragments
	if len(retrieved.Fragments) == 0 {
		report(StageReport{Stage: StageRetrieveMemory, Outcome: OutcomeOK, Err: ErrRetrievalEmpty})
	} else {
		report(stageOK(StageRetrieveMemory))
	}

	// RESOLVE_EMOTION
	state, prior, rep := o.resolve(message, cls.Recommendation)
	report(rep)
	res.State = state

	// SELECT_CONTEXT
	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	history := o.p.Conversation.SelectContext(sctx, message)
	cancel()
	report(stageOK(StageSelectContext))

	// ASSEMBLE_PROMPT
	system, truncated := o.p.Prompts.Assemble(PromptInput{
		Intent:           cls.Intent,
		RelevancePhrases: cls.RelevancePhrases,
		Fragments:        retrieved.Fragments,
		Tier:             retrieved.Tier,
		Recommendation:   cls.Recommendation,
		State:            state,
		Style:            cls.Style,
	})
	if truncated {
		o.log.Warn().Int("max_tokens", o.prompt.MaxTokens).Msg("system prompt truncated")
	}
	report(stageOK(StageAssemblePrompt))

	// GENERATE
	res.Temperature = ComputeTemperature(state, cls.Style, o.prompt)
	gctx, cancel := context.WithTimeout(ctx, o.timeout)
	reply, err := o.p.Generator.Generate(gctx, GenerateRequest{
		SystemPrompt: system,
		History:      history,
		UserMessage:  message,
		Temperature:  res.Temperature,
	})
	cancel()
	if err != nil {
		if !errors.Is(err, ErrGenerationFailure) {
			err = errors.Join(ErrGenerationFailure, err)
		}
		report(StageReport{Stage: StageGenerate, Outcome: OutcomeFatal, Err: err})
		o.log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("turn failed")
		res.Response, res.Failed = Apology, true
		return res
	}
	report(stageOK(StageGenerate))
	res.Response = reply

	// PERSIST
	report(o.persist(ctx, message, reply, prior, state))

	o.log.Info().
		Str("intent", string(cls.Intent)).
		Str("tone", state.Tone).
		Int("fragments", len(retrieved.Fragments)).
		Float64("temperature", res.Temperature).
		Dur("elapsed", time.Since(start)).
		Msg("turn complete")
	return res
}

func (o *Orchestrator) classify(ctx context.Context, message string) (ClassifierResult, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.p.Classifier.Classify(cctx, message, o.p.Conversation.Window())
}

// resolve picks the target state: the classifier's recommendation, then
// the engine's rules, then the prior. The target is smoothed against the
// prior so the mood never jumps. The prior is returned alongside.
func (o *Orchestrator) resolve(message string, rec *EmotionalState) (state, prior EmotionalState, rep StageReport) {
	rep = stageOK(StageResolveEmotion)
	prior, err := o.p.States.CurrentState()
	if err != nil {
		prior = DefaultEmotionalState()
		rep = stageDegraded(StageResolveEmotion, fmt.Errorf("reverie: load current state: %w", err))
	}

	var target EmotionalState
	if rec != nil && !rec.IsZero() {
		target = fillFrom(o.p.Engine.Catalog().CanonicalState(*rec), prior)
	} else {
		r := o.p.Engine.Resolve(message, prior)
		if r.Source == SourcePrior && rep.Err == nil {
			rep = stageDegraded(StageResolveEmotion, ErrStateUnresolved)
		}
		target = r.State
	}
	return SmoothTransition(target, prior), prior, rep
}

// persist saves the state, appends the exchange, then learns and keeps
// important moments. Failures after the history write only degrade.
func (o *Orchestrator) persist(ctx context.Context, message, reply string, prior, state EmotionalState) StageReport {
	var errs []error
	if err := o.p.States.SaveCurrentState(state); err != nil {
		errs = append(errs, err)
	}
	if err := o.p.Conversation.Append(RoleUser, message); err != nil {
		errs = append(errs, err)
	}
	if err := o.p.Conversation.Append(RoleAssistant, reply); err != nil {
		errs = append(errs, err)
	}
	if _, err := o.p.Engine.LearnFromMessage(message); err != nil {
		errs = append(errs, err)
	}

	if o.p.Moments != nil && IsImportantMoment(message, reply, prior, state) {
		text, tags := FormatMoment(message, reply, state)
		mctx, cancel := context.WithTimeout(ctx, o.timeout)
		id, err := o.p.Moments.Store(mctx, text, DiaryTypeFor(state), tags)
		cancel()
		switch {
		case errors.Is(err, ErrNoEmbedder):
		case err != nil:
			errs = append(errs, err)
		default:
			o.log.Debug().Str("id", id).Str("diary", DiaryTypeFor(state)).Msg("important moment stored")
		}
	}

	if err := errors.Join(errs...); err != nil {
		return stageDegraded(StagePersist, err)
	}
	return stageOK(StagePersist)
}

// State returns the persisted emotional state.
func (o *Orchestrator) State() (EmotionalState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.p.States.CurrentState()
}
