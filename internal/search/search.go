// Package search implements the parallel proof-of-work search engine
// (spec.md §4.4): one OS thread pinned per CPU core, a fixed-stride
// per-thread nonce partition, and a strict-greater-difficulty reduction to
// a single session best.
package search

import (
	"runtime"
	"time"

	"github.com/make-os/kitminer/internal/hashfamily"
	"github.com/make-os/kitminer/internal/wire"
	"github.com/make-os/kitminer/pkgs/logger"
	"github.com/make-os/kitminer/util"
	"golang.org/x/sys/unix"
)

// DifficultyFloor is the minimum difficulty a thread must have found before
// it is allowed to surrender to the cutoff clock (spec.md §4.4, §9).
const DifficultyFloor = 8

// CutoffCheckPeriod throttles the clock read inside the hot loop. Changing
// this changes the observable worst-case cutoff overshoot (spec.md §9).
const CutoffCheckPeriod = 100

// Job is one (challenge, nonce range, cutoff) unit of work handed to the
// engine by the session (spec.md §3).
type Job struct {
	Challenge       [32]byte
	NonceStart      uint64
	NonceEnd        uint64
	EffectiveCutoff time.Duration
}

// BestRecord is the highest-difficulty hash (and its nonce) seen in a scope.
type BestRecord struct {
	Nonce      uint64
	Difficulty uint32
	Hash       hashfamily.Digest
}

// Engine runs the search over pinned OS threads.
type Engine struct {
	family            hashfamily.Family
	threadsConfigured uint32
	log               logger.Logger
	coreIDs           func() []int
}

// NewEngine builds a search engine bound to a hash family. threads caps the
// number of core-pinned worker threads that actually search; threads beyond
// this index exit immediately (spec.md §4.4 step 1).
func NewEngine(family hashfamily.Family, threads uint32, log logger.Logger) *Engine {
	return &Engine{
		family:            family,
		threadsConfigured: threads,
		log:               log,
		coreIDs:           defaultCoreIDs,
	}
}

func defaultCoreIDs() []int {
	n := runtime.NumCPU()
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// Result is the outcome of one Run: the reduced best record across all
// threads that contributed, and the total number of hash evaluations.
type Result struct {
	Best      BestRecord
	Processed uint64
}

type threadResult struct {
	best      BestRecord
	processed uint64
	ok        bool
}

// Run searches job.NonceStart..job.NonceEnd across pinned threads, honoring
// cancel and the job's effective cutoff with the difficulty-floor override.
// It blocks until every spawned thread has stopped.
func (e *Engine) Run(cancel util.Interrupt, job Job) Result {
	coreIDs := e.coreIDs()
	results := make([]threadResult, len(coreIDs))

	done := make(chan int, len(coreIDs))
	for slot, coreID := range coreIDs {
		go func(slot, coreID int) {
			defer func() {
				if r := recover(); r != nil {
					if e.log != nil {
						e.log.Error("search thread panicked", "core", coreID, "panic", r)
					}
					results[slot] = threadResult{}
				}
				done <- slot
			}()
			results[slot] = e.runThread(slot, coreID, cancel, job)
		}(slot, coreID)
	}
	for range coreIDs {
		<-done
	}

	var out Result
	for _, r := range results {
		if !r.ok {
			continue
		}
		out.Processed += r.processed
		if r.best.Difficulty > out.Best.Difficulty {
			out.Best = r.best
		}
	}
	return out
}

// runThread is the body of one search thread: pin to coreID, walk the
// thread's partition of the nonce range, and return its contribution.
// A thread whose index is beyond threadsConfigured contributes nothing.
func (e *Engine) runThread(threadIndex, coreID int, cancel util.Interrupt, job Job) threadResult {
	if uint32(threadIndex) >= e.threadsConfigured {
		return threadResult{}
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var mask unix.CPUSet
	mask.Set(coreID)
	if err := unix.SchedSetaffinity(0, &mask); err != nil && e.log != nil {
		e.log.Debug("failed to pin search thread to core", "core", coreID, "err", err)
	}

	scratch := hashfamily.NewScratch()

	firstNonce := job.NonceStart + uint64(wire.PartitionStride)*uint64(threadIndex)
	best := BestRecord{Nonce: firstNonce}
	var processed uint64

	started := time.Now()
	nonce := firstNonce
	for {
		if cancel.IsClosed() {
			return threadResult{}
		}
		if nonce >= job.NonceEnd {
			break
		}

		for _, res := range e.family.Hashes(job.Challenge, nonce, scratch) {
			processed++
			if res.Difficulty > best.Difficulty {
				best = BestRecord{Nonce: nonce, Difficulty: res.Difficulty, Hash: res.Digest}
			}
		}

		if nonce%CutoffCheckPeriod == 0 {
			if time.Since(started) >= job.EffectiveCutoff && best.Difficulty >= DifficultyFloor {
				break
			}
		}

		nonce++
	}

	return threadResult{best: best, processed: processed, ok: true}
}
