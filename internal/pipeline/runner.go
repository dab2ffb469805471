package pipeline

import (
	"context"
	"fmt"

	"github.com/artevida/askql/internal/intent"
	"github.com/artevida/askql/internal/query"
)

// Node is one stage. Nodes do not mutate the State they are given.
type Node func(ctx context.Context, s State) (State, error)

// Stages binds each stage to its node.
type Stages map[Stage]Node

// Runner drives a State through the stages until it is done. Every Runner
// must produce the same Trail for the same inputs.
type Runner interface {
	Run(ctx context.Context, stages Stages, s State) (State, error)
}

// SequentialRunner spells the transitions out as straight-line code.
type SequentialRunner struct{}

func (SequentialRunner) Run(ctx context.Context, stages Stages, s State) (State, error) {
	var err error
	if s, err = invoke(ctx, stages, StageIntent, s); err != nil {
		return degradeAfter(ctx, stages, s, err)
	}
	if s.Intent == intent.Conversational {
		return invoke(ctx, stages, StageSummarize, s)
	}

	if s, err = invoke(ctx, stages, StageHeuristic, s); err != nil {
		return degradeAfter(ctx, stages, s, err)
	}
	if s.Source != SourceHeuristics {
		if s, err = invoke(ctx, stages, StageGenerate, s); err != nil {
			return degradeAfter(ctx, stages, s, err)
		}
	}

	for {
		if s, err = invoke(ctx, stages, StageValidate, s); err != nil {
			return degradeAfter(ctx, stages, s, err)
		}
		if s.Final != "" {
			break
		}
		if s.Attempts >= s.MaxRepairs {
			return finishDegraded(ctx, stages, s)
		}
		if s, err = invoke(ctx, stages, StageRepair, s); err != nil {
			return degradeAfter(ctx, stages, s, err)
		}
		if s, err = invoke(ctx, stages, StageGenerate, s); err != nil {
			return degradeAfter(ctx, stages, s, err)
		}
	}

	if s, err = invoke(ctx, stages, StageExecute, s); err != nil {
		return degradeAfter(ctx, stages, s, err)
	}
	return invoke(ctx, stages, StageSummarize, s)
}

// Edge picks the stage that follows a completed one.
type Edge func(State) Stage

// GraphRunner walks a table of conditional edges.
type GraphRunner struct {
	edges map[Stage]Edge
}

func NewGraphRunner() *GraphRunner {
	return &GraphRunner{edges: map[Stage]Edge{
		StageStart: func(State) Stage { return StageIntent },
		StageIntent: func(s State) Stage {
			if s.Intent == intent.Conversational {
				return StageSummarize
			}
			return StageHeuristic
		},
		StageHeuristic: func(s State) Stage {
			if s.Source == SourceHeuristics {
				return StageValidate
			}
			return StageGenerate
		},
		StageGenerate: func(State) Stage { return StageValidate },
		StageValidate: func(s State) Stage {
			switch {
			case s.Final != "":
				return StageExecute
			case s.Attempts < s.MaxRepairs:
				return StageRepair
			default:
				return StageDegrade
			}
		},
		StageRepair:    func(State) Stage { return StageGenerate },
		StageExecute:   func(State) Stage { return StageSummarize },
		StageDegrade:   func(State) Stage { return StageSummarize },
		StageSummarize: func(State) Stage { return StageDone },
	}}
}

// maxSteps bounds a run even if the edge table were to contain a cycle.
const maxSteps = 64

func (g *GraphRunner) Run(ctx context.Context, stages Stages, s State) (State, error) {
	stage := g.edges[StageStart](s)
	for steps := 0; stage != StageDone; steps++ {
		if steps >= maxSteps {
			return s, fmt.Errorf("pipeline did not finish after %d stages", steps)
		}
		next, err := invoke(ctx, stages, stage, s)
		if err != nil {
			if s, err = recoverFrom(ctx, next, err); err != nil {
				return s, err
			}
			stage = StageDegrade
			continue
		}
		s = next
		edge, ok := g.edges[stage]
		if !ok {
			return s, fmt.Errorf("no edge out of stage %s", stage)
		}
		stage = edge(s)
	}
	return s, nil
}

// invoke runs one node and records it in the trail. Once the request context
// is done only the degrade and summarize stages still run.
func invoke(ctx context.Context, stages Stages, stage Stage, s State) (State, error) {
	s.Trail = append(s.Trail, stage)
	node, ok := stages[stage]
	if !ok {
		return s, fmt.Errorf("no node for stage %s", stage)
	}
	if stage != StageDegrade && stage != StageSummarize {
		if err := ctx.Err(); err != nil {
			return s, err
		}
	}
	next, err := node(ctx, s)
	if err != nil {
		return s, err
	}
	return next, nil
}

// recoverFrom decides whether a stage failure degrades the answer or
// propagates. Timeouts and refused connections from the executor propagate
// unless the request deadline itself has passed.
func recoverFrom(ctx context.Context, s State, err error) (State, error) {
	if s.Degraded {
		return s, err
	}
	s.Failure = err.Error()
	failed := StageStart
	if len(s.Trail) > 0 {
		failed = s.Trail[len(s.Trail)-1]
	}
	switch {
	case ctx.Err() != nil:
		s.DegradeReason = ReasonDeadline
	case query.Fatal(err):
		return s, err
	case failed == StageExecute:
		s.DegradeReason = ReasonExecutionFailed
	case failed == StageGenerate:
		s.DegradeReason = ReasonGenerationFailed
	default:
		s.DegradeReason = ReasonInternal
	}
	return s, nil
}

func degradeAfter(ctx context.Context, stages Stages, s State, err error) (State, error) {
	s, err = recoverFrom(ctx, s, err)
	if err != nil {
		return s, err
	}
	return finishDegraded(ctx, stages, s)
}

func finishDegraded(ctx context.Context, stages Stages, s State) (State, error) {
	s, err := invoke(ctx, stages, StageDegrade, s)
	if err != nil {
		return s, err
	}
	return invoke(ctx, stages, StageSummarize, s)
}
