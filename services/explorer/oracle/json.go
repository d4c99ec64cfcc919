// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the first JSON object out of an oracle reply.
//
// Models wrap JSON in prose or markdown fences despite instructions,
// so this tries a fenced code block first, then the first balanced
// brace span in the raw text. The candidate must pass json.Valid;
// anything else reports false and the caller takes its fallback.
func ExtractJSON(s string) (string, bool) {
	if fenced, ok := fencedBlock(s); ok {
		if candidate, ok := firstObject(fenced); ok {
			return candidate, true
		}
	}
	return firstObject(s)
}

// fencedBlock returns the body of the first ``` fence, skipping the
// info string on the opening line.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// firstObject scans for the first balanced top-level object, ignoring
// braces inside string literals.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}
