// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline runs one question through the exploration stages.
//
// The stage graph is a straight line with a single back-edge:
//
//	load_index → decide_files → fetch_detail → prune →
//	select_ranges → load_slices → answer
//	answer → decide_files            : expansion loop, at most once
//
// Every oracle touchpoint has a deterministic fallback, so a run
// completes even with no oracle configured; only a missing index or a
// canceled context aborts it.
package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage identifies one pipeline stage. The zero value means a run has
// not started.
type Stage int

const (
	stageNone Stage = iota

	// StageLoadIndex loads the signature index from disk.
	StageLoadIndex

	// StageDecideFiles picks which indexed files to explore.
	StageDecideFiles

	// StageFetchDetail parses the selected files into detailed trees.
	StageFetchDetail

	// StagePrune applies the prune plan and server-side caps.
	StagePrune

	// StageSelectRanges picks literal line ranges worth reading.
	StageSelectRanges

	// StageLoadSlices loads the chosen ranges from disk.
	StageLoadSlices

	// StageAnswer produces the final answer and follow-up hints.
	StageAnswer
)

var stageNames = [...]string{
	stageNone:         "none",
	StageLoadIndex:    "load_index",
	StageDecideFiles:  "decide_files",
	StageFetchDetail:  "fetch_detail",
	StagePrune:        "prune",
	StageSelectRanges: "select_ranges",
	StageLoadSlices:   "load_slices",
	StageAnswer:       "answer",
}

// String returns the wire name of the stage.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalJSON encodes the stage as its wire name.
func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a stage from its wire name.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range stageNames {
		if n == name {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", name)
}

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{
		StageLoadIndex,
		StageDecideFiles,
		StageFetchDetail,
		StagePrune,
		StageSelectRanges,
		StageLoadSlices,
		StageAnswer,
	}
}

// transitions lists the legal next stages. The answer back-edge is the
// only divergence from the straight line; anything else reaching
// enterStage is a programming error.
var transitions = map[Stage][]Stage{
	stageNone:         {StageLoadIndex},
	StageLoadIndex:    {StageDecideFiles},
	StageDecideFiles:  {StageFetchDetail},
	StageFetchDetail:  {StagePrune},
	StagePrune:        {StageSelectRanges},
	StageSelectRanges: {StageLoadSlices},
	StageLoadSlices:   {StageAnswer},
	StageAnswer:       {StageDecideFiles},
}

// CanTransition reports whether moving from one stage to another is
// legal.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Event statuses.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// StageEvent is delivered to the run's observer as stages start and
// finish. The WebSocket stream, the CLI spinner and the metrics layer
// all consume the same events.
type StageEvent struct {
	Stage     Stage         `json:"stage"`
	Iteration int           `json:"iteration"`
	Status    string        `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
}

// Observer receives stage events during a run. Callbacks run on the
// pipeline goroutine and should return quickly.
type Observer func(StageEvent)
