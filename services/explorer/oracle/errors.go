// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import "errors"

var (
	// ErrNoOracle indicates no oracle is configured. Callers that can
	// proceed without one should branch on this before Complete.
	ErrNoOracle = errors.New("no oracle configured")

	// ErrEmptyResponse indicates the provider returned no usable
	// content.
	ErrEmptyResponse = errors.New("oracle returned an empty response")
)
