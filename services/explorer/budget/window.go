// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package budget

// promptOverheadTokens covers the fixed prompt scaffolding around the
// variable parts: instructions, JSON schema, role framing, separators.
const promptOverheadTokens = 200

// WindowConfig describes an oracle context window for budget math.
//
// The same config backs two structurally identical budgets: the tree
// budget applied after pruning and the code budget applied to loaded
// slices. Each stage computes its own Overhead and calls Usable.
type WindowConfig struct {
	// ContextWindow is the model's total context size in tokens.
	// Zero disables dynamic budgeting entirely.
	ContextWindow int

	// OutputReserve is the token allotment held back for the
	// model's answer.
	OutputReserve int

	// SafetyFraction scales the remaining window downward to absorb
	// tokenizer estimation error. Typical values are 0.8 to 0.95.
	SafetyFraction float64
}

// DefaultWindowConfig returns defaults sized for common hosted models.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		ContextWindow:  128000,
		OutputReserve:  4096,
		SafetyFraction: 0.9,
	}
}

// Overhead estimates the per-request prompt tokens consumed by the
// question and the serialized candidate file list, plus the fixed
// scaffolding constant.
func Overhead(question, serializedFileList string) int {
	return len(question)/charsPerToken +
		len(serializedFileList)/charsPerToken +
		promptOverheadTokens
}

// Usable returns the token budget available for payload after
// subtracting the output reserve and prompt overhead, scaled by the
// safety fraction and truncated toward zero.
//
// A zero ContextWindow returns 0, which downstream consumers treat as
// "unlimited" (budgeting disabled). Negative intermediate values clamp
// to 0.
func (w WindowConfig) Usable(overhead int) int {
	if w.ContextWindow <= 0 {
		return 0
	}

	remaining := w.ContextWindow - w.OutputReserve - overhead
	if remaining <= 0 {
		return 0
	}

	usable := int(float64(remaining) * w.SafetyFraction)
	if usable < 0 {
		return 0
	}
	return usable
}
