// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Message wraps one delivered JetStream message with the manual
// Ack/Nak standing in for manual offset commit.
type Message struct {
	Subject string
	Data    []byte
	msg     *nats.Msg
}

// Ack confirms successful processing; JetStream will not redeliver.
func (m *Message) Ack() error {
	if err := m.msg.Ack(); err != nil {
		return fmt.Errorf("QUEUE/CONSUMER > ack: %w", err)
	}
	return nil
}

// Nak asks JetStream to redeliver the message after its configured
// backoff, used when processing fails transiently.
func (m *Message) Nak() error {
	if err := m.msg.Nak(); err != nil {
		return fmt.Errorf("QUEUE/CONSUMER > nak: %w", err)
	}
	return nil
}

// Consumer is a durable JetStream pull consumer bound to one topic.
// Pull (rather than push) consumers are used throughout so the
// ingestion and analytics workers control their own fetch cadence
// instead of being driven by broker-side delivery rate.
type Consumer struct {
	sub *nats.Subscription
}

// NewConsumer creates (or attaches to) a durable pull consumer named
// durableName, bound to every partition of topic.
func NewConsumer(client *Client, topic Topic, durableName string) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("QUEUE/CONSUMER > no queue client connected")
	}
	if err := client.EnsureStream(topic); err != nil {
		return nil, err
	}

	ackWait := time.Duration(client.cfg.AckWaitSec) * time.Second
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}

	// Pull consumers are manual-ack by construction; only the ack wait
	// and redelivery cap need configuring.
	sub, err := client.js.PullSubscribe(topic.WildcardSubject(), durableName,
		nats.AckWait(ackWait),
		nats.MaxDeliver(8),
	)
	if err != nil {
		return nil, fmt.Errorf("QUEUE/CONSUMER > pull subscribe %s/%s: %w", topic, durableName, err)
	}
	return &Consumer{sub: sub}, nil
}

// Fetch pulls up to batchSize messages, waiting up to timeout for the
// first one to arrive.
func (c *Consumer) Fetch(batchSize int, timeout time.Duration) ([]*Message, error) {
	msgs, err := c.sub.Fetch(batchSize, nats.MaxWait(timeout))
	if err != nil {
		if err == nats.ErrTimeout {
			return nil, nil
		}
		return nil, fmt.Errorf("QUEUE/CONSUMER > fetch: %w", err)
	}

	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		out[i] = &Message{Subject: m.Subject, Data: m.Data, msg: m}
	}
	return out, nil
}
