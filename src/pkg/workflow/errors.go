package workflow

import (
	"github.com/tuumbleweed/xerr"
)

// Kind classifies a stage failure for the orchestrator's ladder. The kind
// decides whether a failure is retryable (next rung), terminal-for-review,
// or fatal.
type Kind string

const (
	// KindOcrFailure covers provider-level and transport OCR failures;
	// retryable through the backup provider.
	KindOcrFailure Kind = "ocr_failure"
	// KindLlmFailure covers LLM transport/provider failures; retryable
	// through the fallback model.
	KindLlmFailure Kind = "llm_failure"
	// KindLlmInvalidJson means the model responded but its output would not
	// decode. Counted as a plain LLM failure unless both rungs produce it.
	KindLlmInvalidJson Kind = "llm_invalid_json"
	// KindRateLimited means every allowed provider was over budget.
	KindRateLimited Kind = "rate_limited"
	// KindMathFailure is a failed sum check; drives the second-OCR branch,
	// never fatal.
	KindMathFailure Kind = "math_failure"
	// KindParseDegenerate is a candidate with no items and no totals;
	// terminates in needs_review, never fatal.
	KindParseDegenerate Kind = "parse_degenerate"
	// KindRepositoryError is a failed persistence write; the only fatal kind.
	KindRepositoryError Kind = "repository_error"
)

// Failure is the typed value every stage hands back on error. Stage names
// match the run records (ocr_a, ocr_b, llm_primary, llm_fallback, commit).
type Failure struct {
	Kind  Kind
	Stage string
	Cause *xerr.Error
}

func newFailure(kind Kind, stage string, cause *xerr.Error) *Failure {
	return &Failure{Kind: kind, Stage: stage, Cause: cause}
}

// Retryable reports whether the ladder has a next rung for this kind.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindOcrFailure, KindLlmFailure, KindLlmInvalidJson, KindMathFailure:
		return true
	default:
		return false
	}
}

func (f *Failure) Error() string {
	message := string(f.Kind) + " at stage " + f.Stage
	if f.Cause != nil {
		message += ": " + f.Cause.Msg + ": " + f.Cause.ErrStr
	}
	return message
}
