// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package archiver

import (
	"context"
	"sync"

	"github.com/pattern-flywheel/historian/pkg/log"
)

type archiveJob struct {
	key  string
	data []byte
}

var (
	pending sync.WaitGroup
	jobs    chan archiveJob
	target  *Target
)

// Start launches the background archiving worker against t. Call once
// per process before Enqueue.
func Start(t *Target) {
	target = t
	jobs = make(chan archiveJob, 32)
	go archivingWorker()
}

func archivingWorker() {
	for j := range jobs {
		if err := target.WriteObject(context.Background(), j.key, j.data); err != nil {
			log.Errorf("ARCHIVER > write %s: %v", j.key, err)
		}
		pending.Done()
	}
}

// Enqueue schedules an async archive write, the maintenance job's exit
// point before it deletes the corresponding rows.
func Enqueue(key string, data []byte) {
	if jobs == nil {
		log.Fatal("archiver: Enqueue called before Start")
	}
	pending.Add(1)
	jobs <- archiveJob{key: key, data: data}
}

// WaitForArchiving blocks until every enqueued write has completed,
// called before the maintenance job deletes the archived rows.
func WaitForArchiving() {
	pending.Wait()
}
