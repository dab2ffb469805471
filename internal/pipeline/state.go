// Package pipeline answers a question end to end: intent detection,
// heuristic resolution, generation with a bounded repair loop, validation,
// execution and summarization.
package pipeline

import (
	"time"

	"github.com/artevida/askql/internal/conversation"
	"github.com/artevida/askql/internal/intent"
	"github.com/artevida/askql/internal/sqlguard"
)

type Stage string

const (
	StageStart     Stage = "start"
	StageIntent    Stage = "intent"
	StageHeuristic Stage = "heuristic"
	StageGenerate  Stage = "generate"
	StageValidate  Stage = "validate"
	StageRepair    Stage = "repair"
	StageExecute   Stage = "execute"
	StageDegrade   Stage = "degrade"
	StageSummarize Stage = "summarize"
	StageDone      Stage = "done"
)

// SourceHeuristics marks SQL drafted without the text generator.
const SourceHeuristics = "heuristics"

// DegradeReason says why an answer carries no rows.
type DegradeReason string

const (
	ReasonRepairsExhausted DegradeReason = "repairs_exhausted"
	ReasonGenerationFailed DegradeReason = "generation_failed"
	ReasonExecutionFailed  DegradeReason = "execution_failed"
	ReasonDeadline         DegradeReason = "deadline_exceeded"
	ReasonInternal         DegradeReason = "internal"
)

// State is the value threaded through the stages of one request. Final is
// only ever a statement the validator accepted; Rows only ever come from
// executing Final.
type State struct {
	Question   string
	Turns      []conversation.Turn
	MaxRepairs int

	Intent        intent.Kind
	SchemaSummary string

	Draft       string
	Source      string
	Rule        string
	Model       string
	Hint        string
	Explanation string

	Final         string
	ValidationErr *sqlguard.ValidationError
	Attempts      int
	ForcedLimit   bool

	Executed      bool
	Columns       []string
	Rows          [][]any
	ExecutionTime time.Duration

	Degraded        bool
	DegradeReason   DegradeReason
	Failure         string
	NaturalResponse string

	// Trail lists the stages run, in order.
	Trail []Stage
}
