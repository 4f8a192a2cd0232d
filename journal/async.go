package journal

import (
	"sync"

	"github.com/INLOpen/prevaldb/core"
)

const defaultQueueDepth = 256

// pendingRecord is a unit of work for the async drain worker. A barrier
// carries no payload; the worker replies on done once everything enqueued
// before it has been persisted.
type pendingRecord struct {
	rec     core.Record
	payload []byte
	barrier bool
	done    chan error
}

// asyncWriter wraps the synchronous append path with a bounded queue and a
// background worker that drains it strictly in enqueue order. The first
// drain failure is captured and surfaced to every subsequent caller; after a
// failure the journal is fail-stop and no further payloads are written, so a
// gap can never be introduced mid-stream.
type asyncWriter struct {
	j     *Journal
	queue chan pendingRecord

	// sendMu serializes queue sends against close. Senders hold the read
	// side while they re-check closed and enqueue, so close cannot close the
	// channel under an in-flight send.
	sendMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	failure error

	done chan struct{}
}

func newAsyncWriter(j *Journal, depth int) *asyncWriter {
	a := &asyncWriter{
		j:     j,
		queue: make(chan pendingRecord, depth),
		done:  make(chan struct{}),
	}
	go a.drain()
	return a
}

// append encodes the record and enqueues it. It blocks only when the queue
// is full, never on I/O. A previously captured drain failure is returned
// immediately instead of enqueueing.
func (a *asyncWriter) append(rec core.Record) (uint64, error) {
	if err := a.capturedFailure(); err != nil {
		return 0, err
	}
	payload, err := a.j.encodePayload(&rec)
	if err != nil {
		return 0, err
	}
	if !a.send(pendingRecord{rec: rec, payload: payload}) {
		return 0, core.ErrJournalClosed
	}
	return rec.SeqNum, nil
}

// barrier waits until everything enqueued before it is durable and returns
// the captured failure, if any.
func (a *asyncWriter) barrier() error {
	done := make(chan error, 1)
	if !a.send(pendingRecord{barrier: true, done: done}) {
		if err := a.capturedFailure(); err != nil {
			return err
		}
		return core.ErrJournalClosed
	}
	return <-done
}

// send enqueues p unless the writer is closed. It returns false once close
// has begun; the channel is never closed while a sender holds the read lock.
func (a *asyncWriter) send(p pendingRecord) bool {
	a.sendMu.RLock()
	defer a.sendMu.RUnlock()
	if a.closed {
		return false
	}
	a.queue <- p
	return true
}

// close drains the queue, stops the worker and returns the captured failure.
func (a *asyncWriter) close() error {
	a.sendMu.Lock()
	if a.closed {
		a.sendMu.Unlock()
		return a.capturedFailure()
	}
	a.closed = true
	close(a.queue)
	a.sendMu.Unlock()

	<-a.done
	return a.capturedFailure()
}

func (a *asyncWriter) drain() {
	defer close(a.done)
	for p := range a.queue {
		if p.barrier {
			err := a.capturedFailure()
			if err == nil {
				err = a.j.syncActive()
			}
			p.done <- err
			continue
		}
		if a.capturedFailure() != nil {
			// Fail-stop: the failure is already surfaced to callers,
			// writing later records would leave a hole before them.
			continue
		}
		if err := a.j.writePayload(p.payload); err != nil {
			a.setFailure(err)
			a.j.logger.Error("Async journal drain failed.", "seq_num", p.rec.SeqNum, "error", err)
		}
	}
}

func (a *asyncWriter) capturedFailure() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failure
}

func (a *asyncWriter) setFailure(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failure == nil {
		a.failure = err
	}
}
