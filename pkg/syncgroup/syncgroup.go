package syncgroup

import (
	"sync"
)

type syncGroupFunc func()

// SyncGroup wraps sync.WaitGroup for long-lived goroutines: functions are
// queued with Add and launched together by Run, with Add/Done bookkeeping
// handled internally.
type SyncGroup struct {
	wg sync.WaitGroup

	sgFuncsMu    sync.Mutex
	sgFuncs      []syncGroupFunc
	hasRun       bool
	runningCount int
}

// NewSyncGroup creates an empty SyncGroup.
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add queues a goroutine function. Calls made while a previous Run is
// still in flight are dropped; WaitAndClear first.
func (w *SyncGroup) Add(fn syncGroupFunc) {
	if fn == nil {
		return
	}

	w.sgFuncsMu.Lock()
	defer w.sgFuncsMu.Unlock()

	if w.hasRun && w.runningCount > 0 {
		return
	}

	w.sgFuncs = append(w.sgFuncs, fn)
}

// Run launches every queued function in its own goroutine and clears the
// queue. A second Run while goroutines are still live is a no-op.
func (w *SyncGroup) Run() {
	w.sgFuncsMu.Lock()

	if w.hasRun && w.runningCount > 0 {
		w.sgFuncsMu.Unlock()
		return
	}

	fns := w.sgFuncs
	w.sgFuncs = []syncGroupFunc{}
	w.hasRun = true
	w.runningCount = len(fns)
	w.sgFuncsMu.Unlock()

	for _, fn := range fns {
		if fn == nil {
			continue
		}
		w.wg.Add(1)
		go func(doFunc syncGroupFunc) {
			defer func() {
				w.wg.Done()
				w.sgFuncsMu.Lock()
				w.runningCount--
				w.sgFuncsMu.Unlock()
			}()
			doFunc()
		}(fn)
	}
}

// WaitAndClear blocks until all goroutines finish and resets the group.
func (w *SyncGroup) WaitAndClear() {
	w.wg.Wait()

	w.sgFuncsMu.Lock()
	w.sgFuncs = []syncGroupFunc{}
	w.hasRun = false
	w.runningCount = 0
	w.sgFuncsMu.Unlock()
}

// Wait blocks until all goroutines finish.
func (w *SyncGroup) Wait() {
	w.wg.Wait()
}
