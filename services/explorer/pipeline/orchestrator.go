// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/coderange"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/oracle"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/prune"
)

var (
	tracer = otel.Tracer("explorer.pipeline")
	meter  = otel.Meter("explorer.pipeline")
)

// defaultFallbackFiles is the size of the file-selection fallback.
const defaultFallbackFiles = 3

// IndexFunc supplies the signature index for a run.
type IndexFunc func(ctx context.Context) (*index.FilteredIndex, error)

// Config tunes an orchestrator.
type Config struct {
	// FallbackFiles is how many indexed files a run explores when the
	// oracle cannot choose. Zero means 3.
	FallbackFiles int

	// MaxAnswerTokens caps the final completion. Zero keeps the
	// provider default.
	MaxAnswerTokens int

	// MaxCodeTokens bounds loaded code after the loader's byte cap.
	// Zero disables the secondary pass.
	MaxCodeTokens int

	// MaxLoops is accepted for configuration compatibility. The
	// expansion loop never runs more than one extra iteration
	// regardless of its value.
	MaxLoops int
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	// LoadIndex supplies the signature index. Required.
	LoadIndex IndexFunc

	// Parser turns selected files into detailed trees. Required.
	Parser *ast.Loader

	// Pruner applies prune plans and server caps. Required.
	Pruner *prune.Engine

	// Loader reads selected line ranges from disk. Required.
	Loader *coderange.Loader

	// Oracle makes the stage decisions. Nil runs every stage on its
	// deterministic fallback.
	Oracle oracle.Client

	// Selector picks code ranges. Nil selects none.
	Selector *coderange.Selector

	// Observer receives stage events. Optional.
	Observer Observer
}

// Orchestrator runs questions through the pipeline.
//
// Safe for concurrent use: every run owns its State, and the
// orchestrator itself is read-only after construction.
type Orchestrator struct {
	cfg  Config
	deps Deps

	metricsOnce  sync.Once
	stageLatency metric.Float64Histogram
	runs         metric.Int64Counter
	loops        metric.Int64Counter
}

// New validates the wiring and creates an orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.LoadIndex == nil {
		return nil, errors.New("pipeline: LoadIndex is required")
	}
	if deps.Parser == nil {
		return nil, errors.New("pipeline: Parser is required")
	}
	if deps.Pruner == nil {
		return nil, errors.New("pipeline: Pruner is required")
	}
	if deps.Loader == nil {
		return nil, errors.New("pipeline: Loader is required")
	}
	if cfg.FallbackFiles <= 0 {
		cfg.FallbackFiles = defaultFallbackFiles
	}
	return &Orchestrator{cfg: cfg, deps: deps}, nil
}

// initMetrics lazily creates the meters. Failures degrade to
// logging-only observability.
func (o *Orchestrator) initMetrics() {
	o.metricsOnce.Do(func() {
		var err error
		o.stageLatency, err = meter.Float64Histogram("explorer_pipeline_stage_duration_seconds",
			metric.WithDescription("Time spent in each pipeline stage"),
			metric.WithUnit("s"),
		)
		if err != nil {
			slog.Warn("pipeline stage metric unavailable", slog.String("error", err.Error()))
		}
		o.runs, err = meter.Int64Counter("explorer_pipeline_runs_total",
			metric.WithDescription("Completed pipeline runs by outcome"),
		)
		if err != nil {
			slog.Warn("pipeline run metric unavailable", slog.String("error", err.Error()))
		}
		o.loops, err = meter.Int64Counter("explorer_pipeline_loops_total",
			metric.WithDescription("Expansion loop-backs taken"),
		)
		if err != nil {
			slog.Warn("pipeline loop metric unavailable", slog.String("error", err.Error()))
		}
	})
}

// Run executes the full pipeline for one question.
func (o *Orchestrator) Run(ctx context.Context, question string) (*Result, error) {
	o.initMetrics()

	state := NewState(question)
	ctx, span := tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.Int("question.chars", len(question)),
		),
	)
	defer span.End()

	slog.Info("pipeline run started", slog.String("run_id", state.ID))
	start := time.Now()

	err := o.runStages(ctx, state)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if o.runs != nil {
		o.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	if err != nil {
		slog.Warn("pipeline run failed",
			slog.String("run_id", state.ID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	slog.Info("pipeline run completed",
		slog.String("run_id", state.ID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("iterations", state.Iteration+1),
	)
	return state.Result(), nil
}

// runStages drives the stage sequence and the single expansion loop.
func (o *Orchestrator) runStages(ctx context.Context, state *State) error {
	if err := o.runStage(ctx, state, StageLoadIndex, func(ctx context.Context) (string, error) {
		return o.loadIndex(ctx, state)
	}); err != nil {
		return err
	}

	steps := []struct {
		stage Stage
		fn    func(context.Context) (string, error)
	}{
		{StageDecideFiles, func(ctx context.Context) (string, error) { return o.decideFiles(ctx, state) }},
		{StageFetchDetail, func(ctx context.Context) (string, error) { return o.fetchDetail(ctx, state) }},
		{StagePrune, func(ctx context.Context) (string, error) { return o.pruneTrees(ctx, state) }},
		{StageSelectRanges, func(ctx context.Context) (string, error) { return o.selectRanges(ctx, state) }},
		{StageLoadSlices, func(ctx context.Context) (string, error) { return o.loadSlices(ctx, state) }},
		{StageAnswer, func(ctx context.Context) (string, error) { return o.answer(ctx, state) }},
	}

	for {
		for _, step := range steps {
			if err := o.runStage(ctx, state, step.stage, step.fn); err != nil {
				return err
			}
		}

		state.Trace = append(state.Trace, IterationTrace{
			Iteration: state.Iteration,
			Requested: state.Requested,
			Parsed:    state.Parsed,
			Errors:    state.Errors,
			Prune:     state.PruneTrace,
		})

		// The back-edge carries no further back-edge.
		if state.Iteration >= 1 {
			break
		}
		if !shouldLoop(state) {
			break
		}

		state.Iteration++
		if o.loops != nil {
			o.loops.Add(ctx, 1)
		}
		slog.Info("pipeline looping for more context",
			slog.String("run_id", state.ID),
			slog.Any("want_files", state.WantFiles),
		)
	}
	return nil
}

// runStage moves the state into the stage, wraps the body in a span
// and delivers observer events. A non-nil error aborts the run.
func (o *Orchestrator) runStage(ctx context.Context, state *State, stage Stage, fn func(context.Context) (string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.enterStage(state, stage)

	ctx, span := tracer.Start(ctx, "pipeline."+stage.String(),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.Int("iteration", state.Iteration),
		),
	)
	defer span.End()

	o.emit(StageEvent{Stage: stage, Iteration: state.Iteration, Status: EventStarted})

	start := time.Now()
	detail, err := fn(ctx)
	elapsed := time.Since(start)

	if o.stageLatency != nil {
		o.stageLatency.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("stage", stage.String())),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.emit(StageEvent{Stage: stage, Iteration: state.Iteration, Status: EventFailed, Detail: err.Error(), Elapsed: elapsed})
		return err
	}
	if detail != "" {
		span.SetAttributes(attribute.String("detail", detail))
	}
	o.emit(StageEvent{Stage: stage, Iteration: state.Iteration, Status: EventCompleted, Detail: detail, Elapsed: elapsed})

	slog.Debug("pipeline stage completed",
		slog.String("run_id", state.ID),
		slog.String("stage", stage.String()),
		slog.String("detail", detail),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// enterStage asserts transition legality. The sequence is fixed in
// runStages, so a bad transition is a bug, not an input problem.
func (o *Orchestrator) enterStage(state *State, to Stage) {
	if !CanTransition(state.Stage, to) {
		panic(fmt.Sprintf("pipeline: illegal stage transition %s -> %s", state.Stage, to))
	}
	state.Stage = to
}

func (o *Orchestrator) emit(event StageEvent) {
	if o.deps.Observer != nil {
		o.deps.Observer(event)
	}
}

func (o *Orchestrator) loadIndex(ctx context.Context, state *State) (string, error) {
	idx, err := o.deps.LoadIndex(ctx)
	if err != nil {
		return "", err
	}
	if idx == nil {
		return "", index.ErrIndexNotBuilt
	}
	state.Index = idx
	return fmt.Sprintf("%d files indexed", len(idx.Files)), nil
}

func (o *Orchestrator) decideFiles(ctx context.Context, state *State) (string, error) {
	// Reset the per-iteration working set.
	state.Requested = nil
	state.Selected = nil
	state.Parsed = nil
	state.Errors = nil

	requested, reason := o.askForFiles(ctx, state)
	if len(requested) == 0 {
		requested = o.fallbackFiles(state)
		reason = "fallback: first indexed files"
	}
	state.Requested = requested
	slog.Debug("files decided",
		slog.String("run_id", state.ID),
		slog.Any("files", requested),
		slog.String("reason", reason),
	)

	// A loop-back never refetches. If filtering empties the request,
	// the hints are cleared so the loop cannot fire again.
	fresh := make([]string, 0, len(requested))
	for _, file := range requested {
		if !state.Fetched[file] {
			fresh = append(fresh, file)
		}
	}
	if len(fresh) == 0 {
		state.Followups = nil
	}
	state.Selected = fresh

	return fmt.Sprintf("%d files selected", len(fresh)), nil
}

// askForFiles consults the oracle and validates its picks against the
// index. An empty result means the caller should fall back.
func (o *Orchestrator) askForFiles(ctx context.Context, state *State) ([]string, string) {
	if o.deps.Oracle == nil {
		return nil, ""
	}

	request := oracle.NewRequest(decideSystemPrompt,
		decidePrompt(state.Question, state.Index, fetchedList(state), state.WantFiles))
	response, err := o.deps.Oracle.Complete(ctx, request)
	if err != nil {
		slog.Warn("file selection failed, using fallback",
			slog.String("run_id", state.ID),
			slog.String("error", err.Error()),
		)
		return nil, ""
	}

	raw, ok := oracle.ExtractJSON(response.Content)
	if !ok {
		slog.Warn("file selection reply carried no JSON object", slog.String("run_id", state.ID))
		return nil, ""
	}
	var parsed decideReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Warn("file selection reply did not match the expected shape",
			slog.String("run_id", state.ID),
			slog.String("error", err.Error()),
		)
		return nil, ""
	}

	known := make(map[string]bool, len(state.Index.Files))
	for _, file := range state.Index.Files {
		known[file] = true
	}
	files := make([]string, 0, len(parsed.Files))
	for _, file := range parsed.Files {
		if !known[file] {
			slog.Warn("oracle requested a file missing from the index",
				slog.String("run_id", state.ID),
				slog.String("file", file),
			)
			continue
		}
		files = append(files, file)
	}
	return files, parsed.Reason
}

func (o *Orchestrator) fallbackFiles(state *State) []string {
	n := o.cfg.FallbackFiles
	if n > len(state.Index.Files) {
		n = len(state.Index.Files)
	}
	return append([]string(nil), state.Index.Files[:n]...)
}

func fetchedList(state *State) []string {
	if len(state.Fetched) == 0 {
		return nil
	}
	files := make([]string, 0, len(state.Fetched))
	for file := range state.Fetched {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

func (o *Orchestrator) fetchDetail(ctx context.Context, state *State) (string, error) {
	for _, file := range state.Selected {
		state.Fetched[file] = true
		tree, err := o.deps.Parser.Parse(ctx, file)
		if err != nil {
			// Cancellation aborts the run; per-file problems only
			// skip the file.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			state.Errors = append(state.Errors, FileError{File: file, Error: err.Error()})
			slog.Warn("skipping file during detail fetch",
				slog.String("run_id", state.ID),
				slog.String("file", file),
				slog.String("error", err.Error()),
			)
			continue
		}
		state.Trees = append(state.Trees, tree)
		state.Parsed = append(state.Parsed, file)
	}
	return fmt.Sprintf("%d/%d files parsed", len(state.Parsed), len(state.Selected)), nil
}

func (o *Orchestrator) pruneTrees(ctx context.Context, state *State) (string, error) {
	plan := o.askForPlan(ctx, state)
	result := o.deps.Pruner.Apply(state.Trees, plan, state.Question)

	state.Pruned = result.Pruned
	state.DroppedAll = result.DroppedAll
	state.Plan = result.Applied
	state.PruneTrace = result.Trace
	state.ModeUsed = result.Applied.Mode.String()

	return fmt.Sprintf("kept %d of %d files", len(result.Pruned), len(state.Trees)), nil
}

// askForPlan returns the oracle's plan, or nil to let the engine apply
// its keep-everything default.
func (o *Orchestrator) askForPlan(ctx context.Context, state *State) *prune.Plan {
	if o.deps.Oracle == nil || len(state.Trees) == 0 {
		return nil
	}

	request := oracle.NewRequest(pruneSystemPrompt, prunePrompt(state.Question, state.Trees))
	response, err := o.deps.Oracle.Complete(ctx, request)
	if err != nil {
		slog.Warn("prune plan request failed, keeping everything",
			slog.String("run_id", state.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	raw, ok := oracle.ExtractJSON(response.Content)
	if !ok {
		slog.Warn("prune plan reply carried no JSON object", slog.String("run_id", state.ID))
		return nil
	}
	plan, err := prune.ParsePlan([]byte(raw))
	if err != nil {
		slog.Warn("prune plan reply did not parse, keeping everything",
			slog.String("run_id", state.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return plan
}

func (o *Orchestrator) selectRanges(ctx context.Context, state *State) (string, error) {
	trees := state.Pruned
	if len(trees) == 0 {
		trees = state.Trees
	}
	state.Ranges = o.deps.Selector.Select(ctx, state.Question, trees)
	return fmt.Sprintf("%d ranges", len(state.Ranges)), nil
}

func (o *Orchestrator) loadSlices(ctx context.Context, state *State) (string, error) {
	slices := o.deps.Loader.Load(state.Ranges)
	if o.cfg.MaxCodeTokens > 0 {
		slices = coderange.EnforceTokenBudget(slices, o.cfg.MaxCodeTokens)
	}
	state.Slices = slices

	total := 0
	for _, s := range slices {
		total += len(s.Code)
	}
	return fmt.Sprintf("%d slices, %d bytes", len(slices), total), nil
}

func (o *Orchestrator) answer(ctx context.Context, state *State) (string, error) {
	state.Answer = ""
	state.Followups = nil
	state.WantFiles = nil

	if o.deps.Oracle == nil {
		state.Answer = fallbackAnswer(state)
		return "fallback answer", nil
	}

	request := oracle.NewRequest(answerSystemPrompt,
		answerPrompt(state.Question, state.Pruned, state.Slices))
	request.MaxTokens = o.cfg.MaxAnswerTokens

	response, err := o.deps.Oracle.Complete(ctx, request)
	if err != nil {
		slog.Warn("answer request failed, using fallback",
			slog.String("run_id", state.ID),
			slog.String("error", err.Error()),
		)
		state.Answer = fallbackAnswer(state)
		return "fallback answer", nil
	}

	if raw, ok := oracle.ExtractJSON(response.Content); ok {
		var parsed answerReply
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Answer != "" {
			state.Answer = parsed.Answer
			state.Followups = parsed.Followups
			state.WantFiles = parsed.WantFiles
			return fmt.Sprintf("answered, %d followups", len(parsed.Followups)), nil
		}
	}

	// An unparseable reply stands as the raw answer, with no hints.
	state.Answer = response.Content
	return "answered (raw text)", nil
}

// fallbackAnswer is the deterministic text used when no oracle reply
// is available at all.
func fallbackAnswer(state *State) string {
	files := make([]string, 0, len(state.Pruned))
	for _, tree := range state.Pruned {
		if tree != nil {
			files = append(files, tree.FilePath)
		}
	}
	if len(files) == 0 {
		return "No oracle answer is available and no files survived exploration."
	}
	return fmt.Sprintf(
		"No oracle answer is available. Exploration kept %d file(s) relevant to the question: %s. Loaded %d code slice(s).",
		len(files), strings.Join(files, ", "), len(state.Slices),
	)
}
