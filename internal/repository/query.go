// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import sq "github.com/Masterminds/squirrel"

// sb is the shared squirrel statement builder, configured for sqlite3's
// "?" placeholders. Every repository's dynamic queries (filtering by
// state, active flag, category, …) start from this instead of building
// a fresh StatementBuilderType per call site.
var sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
