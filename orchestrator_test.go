package reverie

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orchestratorFixture struct {
	repo    *MemoryRepository
	engine  *EmotionEngine
	conv    *ConversationManager
	moments *stubVectors
	gen     *stubGenerator
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	repo := NewMemoryRepository()
	return &orchestratorFixture{
		repo:    repo,
		engine:  NewEmotionEngine(repo, nil, EmotionConfig{Autonomous: true}, zerolog.Nop()),
		conv:    testConversation(t, repo, nil),
		moments: &stubVectors{},
		gen:     &stubGenerator{reply: "и я люблю тебя"},
	}
}

func (f *orchestratorFixture) build(t *testing.T, classifier Classifier) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Pipeline{
		Classifier:   classifier,
		Retriever:    NewMemoryRetriever(f.moments, nil, nil, RetrievalConfig{}, zerolog.Nop()),
		Engine:       f.engine,
		States:       f.repo,
		Conversation: f.conv,
		Generator:    f.gen,
		Moments:      f.moments,
	}, Config{Logger: zerolog.Nop()})
	require.NoError(t, err)
	return o
}

func stageNames(res TurnResult) []Stage {
	var out []Stage
	for _, r := range res.Stages {
		out = append(out, r.Stage)
	}
	return out
}

func TestHandleTurnHappyPath(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.moments.hits = []VectorHit{{ID: "m1", Text: "мы смотрели на закат", Score: 0.9, Source: DiaryMemories}}
	o := f.build(t, stubClassifier{res: ClassifierResult{Intent: IntentAboutRelationship, Confidence: 0.8}})

	msg := "я люблю когда ты такая нежная, это любовь"
	res := o.HandleTurn(t.Context(), msg)

	require.False(t, res.Failed)
	assert.Equal(t, "и я люблю тебя", res.Response)
	assert.Equal(t, IntentAboutRelationship, res.Intent)
	assert.Equal(t, []Stage{
		StageClassify, StageRetrieveMemory, StageResolveEmotion, StageSelectContext,
		StageAssemblePrompt, StageGenerate, StagePersist,
	}, stageNames(res))
	for _, r := range res.Stages {
		assert.Equal(t, OutcomeOK, r.Outcome, "stage %s", r.Stage)
		assert.NoError(t, r.Err, "stage %s", r.Stage)
	}

	// The marker names the tone and a new emotion; the old emotion stays.
	assert.Equal(t, "нежный", res.State.Tone)
	assert.Equal(t, []string{"нежность", WarmthFiller, "любовь"}, res.State.Emotion)

	saved, err := f.repo.CurrentState()
	require.NoError(t, err)
	assert.True(t, saved.Equal(res.State))

	history := f.conv.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, msg, history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)

	entries, _ := f.repo.EmotionEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, Normalize(msg), entries[0].Trigger)

	require.Len(t, f.gen.reqs, 1)
	req := f.gen.reqs[0]
	assert.Contains(t, req.SystemPrompt, "мы смотрели на закат")
	assert.Contains(t, req.SystemPrompt, "tone: нежный")
	assert.Equal(t, msg, req.UserMessage)
	neutral := NeutralStyle()
	assert.Equal(t, ComputeTemperature(res.State, &neutral, defaultPromptConfig()), req.Temperature)
	assert.Equal(t, req.Temperature, res.Temperature)

	require.Len(t, f.moments.stored, 1)
	assert.True(t, strings.HasPrefix(f.moments.stored[0], DiaryMemories+": Пользователь: "+msg))
}

func TestHandleTurnSteadyMoodStoresNoMoment(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.gen.reply = "спокойно, читала"
	o := f.build(t, stubClassifier{res: ClassifierResult{Intent: IntentCasualChat, Confidence: 0.6}})

	for _, msg := range []string{"как прошёл твой день", "что читала вечером"} {
		res := o.HandleTurn(t.Context(), msg)
		require.False(t, res.Failed)
		assert.Contains(t, res.State.Emotion, "нежность")
	}
	assert.Empty(t, f.moments.stored)
}

func TestHandleTurnGenerationFailurePersistsNothing(t *testing.T) {
	f := newOrchestratorFixture(t)
	require.NoError(t, f.repo.SaveCurrentState(EmotionalState{Tone: "игривый", Emotion: []string{"юмор"}}))
	f.gen.err = errors.New("upstream 500")
	o := f.build(t, nil)

	writes := f.repo.Writes
	res := o.HandleTurn(t.Context(), "ты сейчас такая страстная, это страсть")

	assert.True(t, res.Failed)
	assert.Equal(t, Apology, res.Response)

	rep, ok := res.Stage(StageGenerate)
	require.True(t, ok)
	assert.Equal(t, OutcomeFatal, rep.Outcome)
	assert.ErrorIs(t, rep.Err, ErrGenerationFailure)
	_, ok = res.Stage(StagePersist)
	assert.False(t, ok)

	assert.Equal(t, writes, f.repo.Writes)
	assert.Empty(t, f.conv.History())
	assert.Empty(t, f.moments.stored)
	state, _ := f.repo.CurrentState()
	assert.Equal(t, "игривый", state.Tone)
}

func TestHandleTurnClassifierDegrades(t *testing.T) {
	f := newOrchestratorFixture(t)
	o := f.build(t, stubClassifier{err: errors.New("timeout")})

	res := o.HandleTurn(t.Context(), "как дела")
	require.False(t, res.Failed)
	assert.Equal(t, IntentCasualChat, res.Intent)

	rep, _ := res.Stage(StageClassify)
	assert.Equal(t, OutcomeDegraded, rep.Outcome)
	assert.ErrorIs(t, rep.Err, ErrClassificationUnavailable)

	rep, _ = res.Stage(StageRetrieveMemory)
	assert.Equal(t, OutcomeOK, rep.Outcome)
	assert.ErrorIs(t, rep.Err, ErrRetrievalEmpty)

	rep, _ = res.Stage(StageResolveEmotion)
	assert.Equal(t, OutcomeDegraded, rep.Outcome)
	assert.ErrorIs(t, rep.Err, ErrStateUnresolved)
	assert.True(t, res.State.Equal(DefaultEmotionalState()))
}

func TestHandleTurnUsesRecommendation(t *testing.T) {
	f := newOrchestratorFixture(t)
	rec := EmotionalState{Tone: "игривый", Emotion: []string{"юмор"}}
	o := f.build(t, stubClassifier{res: ClassifierResult{Intent: IntentGreeting, Recommendation: &rec}})

	res := o.HandleTurn(t.Context(), "привет")
	require.False(t, res.Failed)

	assert.Equal(t, "игривый", res.State.Tone)
	assert.Equal(t, []string{"нежность", WarmthFiller, "юмор"}, res.State.Emotion)
	assert.Equal(t, []string{"дрожащий"}, res.State.Subtone)

	rep, _ := res.Stage(StageResolveEmotion)
	assert.Equal(t, OutcomeOK, rep.Outcome)
	require.Len(t, f.gen.reqs, 1)
	assert.Contains(t, f.gen.reqs[0].SystemPrompt, "Рекомендуемый тон: игривый")
}

func TestHandleTurnTriggerOverridesMood(t *testing.T) {
	f := newOrchestratorFixture(t)
	require.NoError(t, f.engine.AddTrigger("моя кошка", EmotionalState{Tone: "игривый", Subtone: []string{"шёпотом"}}))
	o := f.build(t, nil)

	res := o.HandleTurn(t.Context(), "Иди сюда, моя кошка")
	require.False(t, res.Failed)
	assert.Equal(t, "игривый", res.State.Tone)
	assert.Equal(t, []string{"шёпотом"}, res.State.Subtone)
	assert.Equal(t, []string{"нежность"}, res.State.Emotion)
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, err := NewOrchestrator(Pipeline{Engine: f.engine, States: f.repo, Conversation: f.conv}, Config{})
	assert.Error(t, err)
	_, err = NewOrchestrator(Pipeline{Generator: f.gen, States: f.repo, Conversation: f.conv}, Config{})
	assert.Error(t, err)
}
