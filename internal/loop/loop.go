// Package loop runs every state mutation on one goroutine. Clock callbacks,
// IPC commands and periodic passes are posted to it as jobs.
package loop

import (
	"context"
	"errors"
	"log"
	"time"
)

var ErrStopped = errors.New("loop stopped")

type job struct {
	fn   func()
	done chan struct{}
}

type Loop struct {
	cmdChan chan job
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	started bool
}

func New() *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		cmdChan: make(chan job, 64),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

func (l *Loop) Start() {
	log.Println("Starting event loop")
	l.started = true
	go l.run()
}

func (l *Loop) Running() bool {
	return l.started && l.ctx.Err() == nil
}

// Stop ends the loop after the job in progress. Queued jobs are dropped.
func (l *Loop) Stop() {
	l.cancel()
	if l.started {
		<-l.stopped
	}
}

func (l *Loop) run() {
	defer close(l.stopped)
	defer log.Println("Event loop stopped.")
	for {
		select {
		case <-l.ctx.Done():
			return
		case j := <-l.cmdChan:
			l.exec(j)
		}
	}
}

func (l *Loop) exec(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: recovered panic in loop job: %v", r)
		}
		if j.done != nil {
			close(j.done)
		}
	}()
	j.fn()
}

// Post queues fn without waiting. It is dropped once the loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.cmdChan <- job{fn: fn}:
	case <-l.ctx.Done():
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case l.cmdChan <- j:
	case <-l.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-j.done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every posts fn at each interval until ctx is done or the loop stops.
func (l *Loop) Every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.Post(fn)
		}
	}
}
