// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// PublishResult is the synchronous acknowledgement JetStream returns
// for a published message: which stream stored it and at what
// sequence, so a caller can use (stream, sequence) as an idempotency
// marker if it needs one.
type PublishResult struct {
	Stream    string
	Sequence  uint64
	Duplicate bool
}

// Publisher publishes messages onto one topic's stream.
type Publisher struct {
	client *Client
	topic  Topic
}

// NewPublisher returns a Publisher for topic, declaring its backing
// stream if it does not already exist.
func NewPublisher(client *Client, topic Topic) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("QUEUE/PUBLISHER > no queue client connected")
	}
	if err := client.EnsureStream(topic); err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish sends data to the topic under partitionKey and blocks for the
// JetStream ack, returning exactly where it landed.
func (p *Publisher) Publish(partitionKey string, data []byte) (PublishResult, error) {
	ack, err := p.client.js.Publish(p.topic.Subject(partitionKey), data)
	if err != nil {
		return PublishResult{}, fmt.Errorf("QUEUE/PUBLISHER > publish to %s: %w", p.topic, err)
	}
	return PublishResult{Stream: ack.Stream, Sequence: ack.Sequence, Duplicate: ack.Duplicate}, nil
}

// PublishAsync queues data for publish without waiting for the ack;
// callers batch many PublishAsync calls and call Flush once to wait for
// every ack. The ingestion poller does not use it: it calls Publish.
func (p *Publisher) PublishAsync(partitionKey string, data []byte) (nats.PubAckFuture, error) {
	future, err := p.client.js.PublishAsync(p.topic.Subject(partitionKey), data)
	if err != nil {
		return nil, fmt.Errorf("QUEUE/PUBLISHER > publish async to %s: %w", p.topic, err)
	}
	return future, nil
}

// Flush blocks until every PublishAsync call since the last Flush has
// been acknowledged (or errored).
func (p *Publisher) Flush() error {
	<-p.client.js.PublishAsyncComplete()
	return nil
}
