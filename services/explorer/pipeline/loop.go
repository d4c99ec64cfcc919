// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "regexp"

// expansionIntent matches follow-up hints that ask for more source
// context, as opposed to hints that merely suggest related questions.
// Compiled once; matching is case-insensitive.
var expansionIntent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(more|additional|other|further|remaining)\b.{0,40}\b(files?|context|details?|code|sources?)\b`),
	regexp.MustCompile(`(?i)\b(need|want|look at|inspect|examine|fetch|open|read|see)\b.{0,40}\b(files?|definitions?|implementations?|source|headers?)\b`),
	regexp.MustCompile(`(?i)\bwhich files?\b`),
}

// wantsExpansion reports whether any hint reads as a request for more
// source context.
func wantsExpansion(hints []string) bool {
	for _, hint := range hints {
		for _, re := range expansionIntent {
			if re.MatchString(hint) {
				return true
			}
		}
	}
	return false
}

// shouldLoop decides, once per answer, whether to take the expansion
// back-edge. All three must hold: the prune kept something, the
// follow-up hints ask for more context, and at least one wanted file
// has not been fetched in any iteration.
func shouldLoop(state *State) bool {
	if state.DroppedAll {
		return false
	}
	if len(state.Followups) == 0 || !wantsExpansion(state.Followups) {
		return false
	}
	for _, file := range state.WantFiles {
		if !state.Fetched[file] {
			return true
		}
	}
	return false
}
