// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

// Abbreviation is one entry of the knowledge base's token dictionary
// used by the proactive matcher's tokenizer (C10), e.g. "sptemp" ->
// "supply temperature" in the "hvac" context.
type Abbreviation struct {
	Token           string `db:"token" json:"token"`
	Context         string `db:"context" json:"context"`
	Expansion       string `db:"expansion" json:"expansion"`
	Priority        int    `db:"priority" json:"priority"`
	MeasurementType string `db:"measurement_type" json:"measurementType"`
}

// UnitMapping resolves an engineering unit symbol (e.g. "psi", "gpm") to
// its measurement type ("pressure", "flow"), letting the proactive
// matcher reason about unit compatibility without hardcoding unit lists.
type UnitMapping struct {
	UnitSymbol      string `db:"unit_symbol" json:"unitSymbol"`
	MeasurementType string `db:"measurement_type" json:"measurementType"`
}

// NamingConvention is a regular expression over tag names that, when
// matched, nudges the proactive matcher's confidence up by the given
// boost (e.g. a well-formed "<area>.<equipment>.<point>" address).
type NamingConvention struct {
	ID              string  `db:"id" json:"id"`
	Pattern         string  `db:"pattern" json:"pattern"`
	ConfidenceBoost float64 `db:"confidence_boost" json:"confidenceBoost"`
}

// MeasurementType is a node in the knowledge base's measurement-type
// hierarchy (e.g. "flow" under "process-variable"). The repository can
// load the hierarchy, but no matcher scoring step reads it.
type MeasurementType struct {
	Name   string `db:"name" json:"name"`
	Parent string `db:"parent" json:"parent"`
}
