// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

// configSchema validates config.json before it is decoded over Keys'
// defaults.
const configSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"metadataStoreDsn": {"type": "string"},
		"queue": {
			"type": "object",
			"properties": {
				"address": {"type": "string"},
				"username": {"type": "string"},
				"password": {"type": "string"},
				"credsFilePath": {"type": "string"},
				"replicas": {"type": "integer", "minimum": 1},
				"ackWaitSeconds": {"type": "integer", "minimum": 1}
			}
		},
		"pipeline": {
			"type": "object",
			"properties": {
				"pollIntervalMs": {"type": "integer", "minimum": 1},
				"batchSize": {"type": "integer", "minimum": 1}
			}
		},
		"behavioral": {
			"type": "object",
			"properties": {
				"minSamples": {"type": "integer", "minimum": 1},
				"windowHours": {"type": "integer", "minimum": 1}
			}
		},
		"correlation": {
			"type": "object",
			"properties": {
				"minR": {"type": "number", "minimum": 0, "maximum": 1},
				"windowHours": {"type": "integer", "minimum": 1},
				"minSamples": {"type": "integer", "minimum": 1},
				"cacheTtlHours": {"type": "integer", "minimum": 1}
			}
		},
		"cluster": {
			"type": "object",
			"properties": {
				"minSize": {"type": "integer", "minimum": 1},
				"maxSize": {"type": "integer", "minimum": 1},
				"minCohesion": {"type": "number", "minimum": 0, "maximum": 1}
			}
		},
		"matching": {
			"type": "object",
			"properties": {
				"minConfidence": {"type": "number", "minimum": 0, "maximum": 1},
				"proactiveMinConfidence": {"type": "number", "minimum": 0, "maximum": 1},
				"maxPerCluster": {"type": "integer", "minimum": 1},
				"weights": {"type": "object"},
				"proactiveWeights": {"type": "object"}
			}
		},
		"learning": {
			"type": "object",
			"properties": {
				"boost": {"type": "number", "minimum": 0},
				"penalty": {"type": "number", "minimum": 0},
				"decayPerDay": {"type": "number", "minimum": 0},
				"floor": {"type": "number", "minimum": 0, "maximum": 1}
			}
		},
		"maintenance": {
			"type": "object",
			"properties": {
				"retentionDays": {"type": "integer", "minimum": 1},
				"archiveBucket": {"type": "string"},
				"archiveRegion": {"type": "string"}
			}
		},
		"sources": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"replayFixture": {"type": "string"}
				}
			}
		},
		"metrics": {
			"type": "object",
			"properties": {
				"addr": {"type": "string"}
			}
		}
	}
}`
