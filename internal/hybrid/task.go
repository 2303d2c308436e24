package hybrid

import (
	"context"
	"fmt"
	"sync"

	"github.com/deixis/hybridexec/internal/execute"
)

// task is one candidate execution. Nothing runs until start or wait is
// called, so a task that is never picked costs nothing. A task is driven by
// a single goroutine and is not safe for concurrent use.
type task struct {
	name      string
	run       func(ctx context.Context) *execute.Result
	onAbandon func() // runs if the task is abandoned before running

	// gate, if set, must admit the task before run is called.
	gate func(ctx context.Context) (release func(), err error)

	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	started bool
	bypass  context.CancelFunc // ends a pending gate wait
	done   chan *execute.Result
	res    *execute.Result
}

func newTask(parent context.Context, name string, run func(context.Context) *execute.Result, onAbandon func()) *task {
	ctx, cancel := context.WithCancel(parent)
	return &task{
		name:      name,
		run:       run,
		onAbandon: onAbandon,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan *execute.Result, 1),
	}
}

func (t *task) start() {
	t.once.Do(func() {
		t.started = true
		gateCtx, bypass := context.WithCancel(t.ctx)
		t.bypass = bypass
		go func() {
			defer bypass()
			if t.gate != nil {
				release, err := t.gate(gateCtx)
				switch {
				case err == nil:
					defer release()
				case t.ctx.Err() == nil && gateCtx.Err() != nil:
					// Ungated while waiting for admission.
				default:
					if t.onAbandon != nil {
						t.onAbandon()
					}
					t.done <- notAdmitted(t.name, err)
					return
				}
			}
			t.done <- t.run(t.ctx)
		}()
	})
}

// ungate drops the admission requirement. A task still waiting for
// admission runs right away; one already admitted is unaffected.
func (t *task) ungate() {
	if !t.started {
		t.gate = nil
		return
	}
	t.bypass()
}

// wait starts the task if needed and blocks until it has a result.
func (t *task) wait() *execute.Result {
	t.start()
	if t.res == nil {
		t.res = <-t.done
	}
	return t.res
}

// abandon stops caring about the task. A running task sees its context
// cancelled; a task that never started never will.
func (t *task) abandon() {
	t.once.Do(func() {
		if t.onAbandon != nil {
			t.onAbandon()
		}
	})
	t.cancel()
}

// race starts both tasks and returns them in completion order. The loser
// keeps running.
func race(a, b *task) (first, second *task) {
	a.start()
	b.start()
	select {
	case r := <-a.done:
		a.res = r
		return a, b
	case r := <-b.done:
		b.res = r
		return b, a
	}
}

func notAdmitted(executor string, err error) *execute.Result {
	report := execute.NewReport(executor)
	report.Error = fmt.Sprintf("not admitted: %v", err)
	report.ExitCode = -1
	report.Finish(execute.ClaimCancelled)
	return &execute.Result{Report: report}
}
