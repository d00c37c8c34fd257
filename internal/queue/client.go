// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pattern-flywheel/historian/pkg/log"
)

// Client wraps a JetStream-enabled NATS connection, holding a
// JetStreamContext instead of a bare *nats.Conn so every publish/subscribe
// call here is durable by construction.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	cfg  Config
}

var (
	clientOnce     sync.Once
	clientInstance *Client
)

// Connect initializes the singleton JetStream client. A missing address
// is treated as "queue gateway disabled" rather than a fatal-startup
// condition: aborts are reserved for the metadata store and queue
// *producer*, not for an operator who has not yet wired a broker.
func Connect(cfg Config) {
	clientOnce.Do(func() {
		if cfg.Address == "" {
			log.Warn("QUEUE/CLIENT > no broker address configured, ingestion and analytics pipelines will run disconnected")
			return
		}

		client, err := newClient(cfg)
		if err != nil {
			log.Warnf("QUEUE/CLIENT > connect failed: %v", err)
			return
		}
		clientInstance = client
	})
}

func newClient(cfg Config) (*Client, error) {
	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}
	opts = append(opts,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("QUEUE/CLIENT > disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("QUEUE/CLIENT > reconnected to %s", nc.ConnectedUrl())
		}),
	)

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	log.Infof("QUEUE/CLIENT > connected to %s", cfg.Address)
	return &Client{conn: nc, js: js, cfg: cfg}, nil
}

// GetClient returns the singleton client, or nil if Connect was never
// called or the broker was unreachable.
func GetClient() *Client {
	return clientInstance
}

// EnsureStream declares (or updates) the JetStream stream backing a
// topic. Idempotent: safe to call on every process startup.
func (c *Client) EnsureStream(topic Topic) error {
	ackWait := time.Duration(c.cfg.AckWaitSec) * time.Second
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}

	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:     topic.StreamName(),
		Subjects: []string{topic.WildcardSubject()},
		Replicas: max(c.cfg.Replicas, 1),
		Storage:  nats.FileStorage,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("QUEUE/CLIENT > ensure stream %s: %w", topic.StreamName(), err)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
