package reverie

import (
	"errors"
	"fmt"
)

var (
	// ErrClassificationUnavailable: the classifier failed or returned
	// unparseable data. Recovered with a neutral intent and style.
	ErrClassificationUnavailable = errors.New("classification unavailable")
	// ErrRetrievalEmpty: neither retrieval tier produced a fragment.
	ErrRetrievalEmpty = errors.New("no memories retrieved")
	// ErrStateUnresolved: no trigger or fuzzy match; prior state reused.
	ErrStateUnresolved = errors.New("emotional state unresolved")
	// ErrGenerationFailure is the only failure that ends a turn.
	ErrGenerationFailure = errors.New("generation failed")
	// ErrStoreCorruption: a persisted table failed to parse and was reset.
	ErrStoreCorruption = errors.New("store table corrupted")
)

// Stage names a step of the per-turn pipeline.
type Stage string

const (
	StageClassify       Stage = "CLASSIFY"
	StageRetrieveMemory Stage = "RETRIEVE_MEMORY"
	StageResolveEmotion Stage = "RESOLVE_EMOTION"
	StageSelectContext  Stage = "SELECT_CONTEXT"
	StageAssemblePrompt Stage = "ASSEMBLE_PROMPT"
	StageGenerate       Stage = "GENERATE"
	StagePersist        Stage = "PERSIST"
)

// Outcome is how a stage finished.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeDegraded means the stage fell back to a default and the turn continued.
	OutcomeDegraded
	// OutcomeFatal ends the turn. Only GENERATE may produce it.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// StageReport records the outcome of one stage.
type StageReport struct {
	Stage   Stage
	Outcome Outcome
	Err     error
}

func stageOK(stage Stage) StageReport { return StageReport{Stage: stage, Outcome: OutcomeOK} }

func stageDegraded(stage Stage, err error) StageReport {
	return StageReport{Stage: stage, Outcome: OutcomeDegraded, Err: err}
}

// statusError is a non-2xx reply from an HTTP collaborator.
type statusError struct {
	service string
	status  int
	body    string
}

func (e *statusError) Error() string {
	if e.status == 0 {
		return fmt.Sprintf("%s: %s", e.service, e.body)
	}
	return fmt.Sprintf("%s %d: %s", e.service, e.status, e.body)
}
