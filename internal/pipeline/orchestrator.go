package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/artevida/askql/internal/conversation"
	"github.com/artevida/askql/internal/heuristics"
	"github.com/artevida/askql/internal/intent"
	"github.com/artevida/askql/internal/nl2sql"
	"github.com/artevida/askql/internal/observability"
	"github.com/artevida/askql/internal/query"
	"github.com/artevida/askql/internal/sqlguard"
)

const (
	DefaultMaxRepairs       = 2
	DefaultForcedLimit      = 50
	DefaultGenerateTimeout  = 20 * time.Second
	DefaultSummarizeTimeout = 10 * time.Second
)

type Resolver interface {
	Resolve(ctx context.Context, question string, turns []conversation.Turn) (heuristics.Draft, bool)
}

type Validator interface {
	Validate(candidate string) sqlguard.Result
}

// SchemaSource supplies the advisory schema text for prompts.
type SchemaSource interface {
	Get(ctx context.Context) string
}

// Dependencies are the collaborators of an Orchestrator. Validator, Engine
// and Generator are required.
type Dependencies struct {
	Resolver   Resolver
	Generator  nl2sql.Generator
	Validator  Validator
	Engine     query.Engine
	Summarizer nl2sql.Summarizer
	Schema     SchemaSource
}

type Option func(*Orchestrator)

func WithRunner(runner Runner) Option {
	return func(o *Orchestrator) {
		if runner != nil {
			o.runner = runner
		}
	}
}

func WithMaxRepairs(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRepairs = n
		}
	}
}

// WithRequestTimeout bounds a whole Ask call. Zero leaves the caller's
// deadline alone.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.requestTimeout = d }
}

func WithStageTimeouts(generate, summarize time.Duration) Option {
	return func(o *Orchestrator) {
		if generate > 0 {
			o.generateTimeout = generate
		}
		if summarize > 0 {
			o.summarizeTimeout = summarize
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type Orchestrator struct {
	deps             Dependencies
	runner           Runner
	maxRepairs       int
	requestTimeout   time.Duration
	generateTimeout  time.Duration
	summarizeTimeout time.Duration
	logger           *slog.Logger
}

func New(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if deps.Validator == nil {
		return nil, errors.New("validator is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("query engine is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if deps.Summarizer == nil {
		deps.Summarizer = nl2sql.FallbackSummarizer{}
	}
	o := &Orchestrator{
		deps:             deps,
		runner:           SequentialRunner{},
		maxRepairs:       DefaultMaxRepairs,
		generateTimeout:  DefaultGenerateTimeout,
		summarizeTimeout: DefaultSummarizeTimeout,
		logger:           slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

type Answer struct {
	SQL             string           `json:"sql"`
	Columns         []string         `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	Explanation     string           `json:"explanation"`
	NaturalResponse string           `json:"naturalResponse"`
	ExecutionTime   time.Duration    `json:"-"`
	Degraded        bool             `json:"degraded"`
	Intent          intent.Kind      `json:"intent"`
	Source          string           `json:"source,omitempty"`
	Attempts        int              `json:"attempts"`
}

// Ask runs the pipeline for one question. Ordinary failures produce a
// degraded Answer; only executor timeouts and refused connections are
// returned as errors, as *query.ExecutionError.
func (o *Orchestrator) Ask(ctx context.Context, question string, turns []conversation.Turn) (Answer, error) {
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, o.logger)

	s, err := o.Run(ctx, question, turns)
	if err != nil {
		observability.ObserveAsk(string(s.Intent), "error")
		logger.WarnContext(ctx, "ask failed",
			slog.String("question", question),
			slog.String("kind", string(query.KindOf(err))),
			slog.Any("error", err),
		)
		return Answer{}, err
	}

	outcome := "answered"
	switch {
	case s.Intent == intent.Conversational:
		outcome = "conversational"
	case s.Degraded:
		outcome = "degraded"
	}
	observability.ObserveAsk(string(s.Intent), outcome)
	logger.InfoContext(ctx, "ask completed",
		slog.String("outcome", outcome),
		slog.String("source", s.Source),
		slog.Int("attempts", s.Attempts),
		slog.Int("rows", len(s.Rows)),
		slog.String("degrade_reason", string(s.DegradeReason)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return answerFrom(s), nil
}

// Run drives a fresh State through the configured runner and returns the
// final State, which tests and tooling can inspect.
func (o *Orchestrator) Run(ctx context.Context, question string, turns []conversation.Turn) (State, error) {
	s := State{
		Question:   strings.TrimSpace(question),
		Turns:      conversation.Window(turns),
		MaxRepairs: o.maxRepairs,
		Trail:      []Stage{StageStart},
	}
	s, err := o.runner.Run(ctx, o.stages(), s)
	if err != nil {
		return s, err
	}
	s.Trail = append(s.Trail, StageDone)
	return s, nil
}

func answerFrom(s State) Answer {
	rows := []map[string]any{}
	if s.Executed {
		rows = query.Result{Columns: s.Columns, Rows: s.Rows}.Records()
	}
	columns := s.Columns
	if columns == nil {
		columns = []string{}
	}
	return Answer{
		SQL:             s.Final,
		Columns:         columns,
		Rows:            rows,
		Explanation:     s.Explanation,
		NaturalResponse: s.NaturalResponse,
		ExecutionTime:   s.ExecutionTime,
		Degraded:        s.Degraded,
		Intent:          s.Intent,
		Source:          s.Source,
		Attempts:        s.Attempts,
	}
}

func (o *Orchestrator) stages() Stages {
	nodes := Stages{
		StageIntent:    o.detectIntent,
		StageHeuristic: o.resolveHeuristic,
		StageGenerate:  o.generate,
		StageValidate:  o.validate,
		StageRepair:    o.repair,
		StageExecute:   o.execute,
		StageDegrade:   o.degrade,
		StageSummarize: o.summarize,
	}
	for stage, node := range nodes {
		nodes[stage] = o.logged(stage, node)
	}
	return nodes
}

func (o *Orchestrator) logged(stage Stage, node Node) Node {
	return func(ctx context.Context, s State) (State, error) {
		next, err := node(ctx, s)
		attrs := []any{
			slog.String(observability.TraceAttr, observability.TraceIDFromContext(ctx)),
			slog.String("stage", string(stage)),
			slog.String("rule", next.Rule),
			slog.Int("attempts", next.Attempts),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}
		o.logger.DebugContext(ctx, "pipeline stage", attrs...)
		return next, err
	}
}

func (o *Orchestrator) detectIntent(_ context.Context, s State) (State, error) {
	s.Intent = intent.Classify(s.Question)
	return s, nil
}

func (o *Orchestrator) resolveHeuristic(ctx context.Context, s State) (State, error) {
	if o.deps.Resolver == nil {
		return s, nil
	}
	draft, ok := o.deps.Resolver.Resolve(ctx, s.Question, s.Turns)
	if !ok {
		return s, nil
	}
	observability.ObserveHeuristicHit(string(draft.Rule))
	s.Draft = draft.SQL
	s.Source = SourceHeuristics
	s.Rule = string(draft.Rule)
	s.Explanation = draft.Explanation
	return s, nil
}

func (o *Orchestrator) generate(ctx context.Context, s State) (State, error) {
	if s.SchemaSummary == "" && o.deps.Schema != nil {
		s.SchemaSummary = o.deps.Schema.Get(ctx)
	}
	gctx, cancel := context.WithTimeout(ctx, o.generateTimeout)
	defer cancel()

	start := time.Now()
	gen, err := o.deps.Generator.Generate(gctx, nl2sql.Request{
		Question:      s.Question,
		Turns:         s.Turns,
		Hint:          s.Hint,
		SchemaSummary: s.SchemaSummary,
	})
	observability.ObserveGeneration(gen.Provider, err, time.Since(start))

	s.Rule = ""
	switch {
	case errors.Is(err, nl2sql.ErrNoSQL):
		// Nothing usable: let the validator reject the empty draft so the
		// repair loop gets a chance.
		s.Draft = ""
		s.Source = gen.Provider
		return s, nil
	case err != nil:
		return s, fmt.Errorf("generate sql: %w", err)
	}
	s.Draft = gen.SQL
	s.Source = gen.Provider
	s.Model = gen.Model
	s.Explanation = gen.Explanation
	return s, nil
}

func (o *Orchestrator) validate(_ context.Context, s State) (State, error) {
	result := o.deps.Validator.Validate(s.Draft)
	observability.ObserveValidation(string(result.ErrorKind()))
	if !result.Valid {
		s.Final = ""
		s.ValidationErr = result.Err
		return s, nil
	}
	s.Final = result.SanitizedSQL
	s.ValidationErr = nil
	return s, nil
}

func (o *Orchestrator) repair(_ context.Context, s State) (State, error) {
	s.Attempts++
	observability.IncrementRepairAttempts()
	s.Hint = RepairHint(s.Draft, s.ValidationErr)
	return s, nil
}

// RepairHint is the feedback given to the generator after a rejection.
func RepairHint(rejected string, verr *sqlguard.ValidationError) string {
	kind, message := "UNKNOWN", "the statement was rejected"
	if verr != nil {
		kind, message = string(verr.Kind), verr.Message
	}
	hint := fmt.Sprintf("Validator error %s: %s. Rules: only SELECT statements, only the allowed tables and views, add LIMIT if missing.", kind, message)
	if rejected = strings.TrimSpace(rejected); rejected != "" {
		hint += "\nRejected SQL: " + rejected
	}
	return hint
}

var limitWord = regexp.MustCompile(`(?i)\blimit\b`)

func (o *Orchestrator) execute(ctx context.Context, s State) (State, error) {
	if s.Final == "" {
		return s, errors.New("execute called without validated sql")
	}
	result, err := o.deps.Engine.Execute(ctx, s.Final)
	observability.ObserveExecution(executionLabel(err), result.Duration)
	if err != nil && ctx.Err() == nil && !limitWord.MatchString(s.Final) {
		forced := o.deps.Validator.Validate(s.Final + fmt.Sprintf(" LIMIT %d", DefaultForcedLimit))
		if forced.Valid {
			s.Final = forced.SanitizedSQL
			s.ForcedLimit = true
			result, err = o.deps.Engine.Execute(ctx, s.Final)
			observability.ObserveExecution(executionLabel(err), result.Duration)
		}
	}
	if err != nil {
		return s, err
	}
	s.Executed = true
	s.Columns = result.Columns
	s.Rows = result.Rows
	s.ExecutionTime = result.Duration
	return s, nil
}

func executionLabel(err error) string {
	if err == nil {
		return ""
	}
	return string(query.KindOf(err))
}

func (o *Orchestrator) degrade(_ context.Context, s State) (State, error) {
	if s.DegradeReason == "" {
		s.DegradeReason = ReasonRepairsExhausted
	}
	observability.IncrementDegraded(string(s.DegradeReason))
	s.Degraded = true
	s.Executed = false
	s.Columns = nil
	s.Rows = nil
	s.Explanation, s.NaturalResponse = degradedText(s)
	return s, nil
}

func degradedText(s State) (string, string) {
	switch s.DegradeReason {
	case ReasonRepairsExhausted:
		kind := "UNKNOWN"
		if s.ValidationErr != nil {
			kind = string(s.ValidationErr.Kind)
		}
		return fmt.Sprintf("No safe query could be built after %d repair attempts (last rejection: %s).", s.Attempts, kind),
			fmt.Sprintf("I couldn't turn %q into a safe query. Try rephrasing it with a concrete artist, city or event type.", s.Question)
	case ReasonGenerationFailed:
		return "The query generator is unavailable.",
			"I can't build a query for that right now. Please try again in a moment."
	case ReasonExecutionFailed:
		return "The query failed to run.",
			fmt.Sprintf("The query for %q could not be run. Try a narrower question, for example limiting it to one city.", s.Question)
	case ReasonDeadline:
		return "The request ran out of time.",
			"That took too long to answer. Try a more specific question."
	default:
		return "The question could not be processed.",
			"Something went wrong while answering. Please try again."
	}
}

func (o *Orchestrator) summarize(ctx context.Context, s State) (State, error) {
	switch {
	case s.Intent == intent.Conversational:
		s.NaturalResponse = intent.Greeting
		s.Explanation = "Small talk: no query was run."
		return s, nil
	case s.Degraded:
		return s, nil
	}

	records := query.Result{Columns: s.Columns, Rows: s.Rows}.Records()
	var text string
	if ctx.Err() == nil {
		sctx, cancel := context.WithTimeout(ctx, o.summarizeTimeout)
		summary, err := o.deps.Summarizer.Summarize(sctx, s.Question, records)
		cancel()
		if err == nil {
			text = nl2sql.Sanitize(summary)
		} else {
			observability.LoggerFromContext(ctx, o.logger).WarnContext(ctx, "summarizer failed", slog.Any("error", err))
		}
	}
	if text == "" {
		summary, _ := nl2sql.FallbackSummarizer{}.Summarize(ctx, s.Question, records)
		text = nl2sql.Sanitize(summary)
	}
	s.NaturalResponse = text
	return s, nil
}
