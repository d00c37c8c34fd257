// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package archiver is the optional cold-archive path the daily
// maintenance job (C11) writes purged rows through before deleting
// them, when maintenance.archiveBucket is configured.
package archiver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// TargetConfig holds the configuration for an S3 archive target.
type TargetConfig struct {
	Bucket string
	Region string
}

// Target writes newline-delimited JSON objects to an S3 bucket.
type Target struct {
	client *s3.Client
	bucket string
}

// NewTarget builds an S3-backed archive target from the ambient AWS
// credential chain (environment, shared config, or container role).
func NewTarget(ctx context.Context, cfg TargetConfig) (*Target, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archiver: empty bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archiver: load AWS config: %w", err)
	}

	return &Target{client: s3.NewFromConfig(awsCfg), bucket: cfg.Bucket}, nil
}

// WriteObject puts one object's worth of NDJSON bytes at key.
func (t *Target) WriteObject(ctx context.Context, key string, data []byte) error {
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archiver: put object %q: %w", key, err)
	}
	return nil
}
