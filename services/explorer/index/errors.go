// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import "errors"

// ErrIndexNotBuilt is returned when the on-disk signature index is
// missing. Callers decide whether to build one or surface the error
// (the HTTP layer maps it to 503).
var ErrIndexNotBuilt = errors.New("signature index not built")
