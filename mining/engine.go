// Package mining implements the proof-of-work search a slot's assigned
// proposer must complete before a block is accepted: find a Nonce such that
// the block's hash has at least Difficulty leading hexadecimal zero digits.
package mining

import (
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Timeout is the hard safety bound on a single mining attempt. Past this,
// MineSequential and MineParallel return ErrTimeout rather than running forever against a
// misconfigured (too-high) difficulty.
const Timeout = 10 * time.Minute

// ErrTimeout is returned when no valid nonce is found within Timeout.
// It is a non-fatal, retryable condition — the caller may lower the
// difficulty or simply try the next slot.
var ErrTimeout = errors.New("mining: timed out searching for a valid nonce")

// Hashable is the minimal block contract the engine needs: mutate a
// candidate nonce and recompute the resulting hash.
type Hashable interface {
	SetNonce(nonce uint64)
	ComputeHash() string
}

// IsValidHash reports whether hash has at least difficulty leading
// hexadecimal zero digits.
func IsValidHash(hash string, difficulty uint8) bool {
	if int(difficulty) > len(hash) {
		return false
	}
	return strings.Trim(hash[:difficulty], "0") == ""
}

// Result is the outcome of a mining attempt.
type Result struct {
	Nonce     uint64
	Hash      string
	HashCount uint64
	Elapsed   time.Duration
}

// MineSequential searches nonces starting at 0, incrementing by one, until a
// hash satisfying difficulty is found or Timeout elapses.
func MineSequential(b Hashable, difficulty uint8) (Result, error) {
	start := time.Now()
	var hashCount uint64
	for nonce := uint64(0); ; nonce++ {
		b.SetNonce(nonce)
		hash := b.ComputeHash()
		hashCount++
		if IsValidHash(hash, difficulty) {
			return Result{Nonce: nonce, Hash: hash, HashCount: hashCount, Elapsed: time.Since(start)}, nil
		}
		if time.Since(start) > Timeout {
			return Result{}, ErrTimeout
		}
	}
}

// NewBlockFunc constructs a fresh, independently-nonceable candidate for a
// parallel worker to mutate. Workers never share one Hashable: field writes
// from concurrent goroutines on the same struct would race.
type NewBlockFunc func() Hashable

// MineParallel partitions the nonce space across workers goroutines (one per
// CPU core if workers <= 0), each exploring nonces congruent to its own
// worker index modulo the worker count. The first worker to find a valid
// nonce signals the others to stop via a cooperative atomic flag; any
// work a losing worker was mid-way through is discarded.
func MineParallel(newBlock NewBlockFunc, difficulty uint8, workers int) (Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var stop int32
	var found int32
	resultCh := make(chan Result, 1)
	var totalHashes int64
	start := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerIdx int) {
			defer wg.Done()
			candidate := newBlock()
			var hashCount uint64
			nonce := uint64(workerIdx)
			for {
				if atomic.LoadInt32(&stop) != 0 {
					atomic.AddInt64(&totalHashes, int64(hashCount))
					return
				}
				candidate.SetNonce(nonce)
				hash := candidate.ComputeHash()
				hashCount++
				if IsValidHash(hash, difficulty) {
					if atomic.CompareAndSwapInt32(&found, 0, 1) {
						atomic.StoreInt32(&stop, 1)
						atomic.AddInt64(&totalHashes, int64(hashCount))
						resultCh <- Result{Nonce: nonce, Hash: hash}
					}
					return
				}
				if time.Since(start) > Timeout {
					atomic.StoreInt32(&stop, 1)
					atomic.AddInt64(&totalHashes, int64(hashCount))
					return
				}
				nonce += uint64(workers)
			}
		}(w)
	}

	wg.Wait()
	close(resultCh)

	elapsed := time.Since(start)
	res, ok := <-resultCh
	if !ok {
		return Result{}, ErrTimeout
	}
	res.HashCount = uint64(atomic.LoadInt64(&totalHashes))
	res.Elapsed = elapsed
	return res, nil
}
