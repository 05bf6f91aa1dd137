// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sm

import (
	"fmt"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// phase is the lifecycle position, stored in the packed word above the
// in-flight count.
type phase uint64

const (
	phaseCreated phase = iota
	phaseOpening
	phaseOpened
	phaseDrainingToBarrier
	phaseDrainingToClose
	phaseBarrier
	phaseClosing
)

// String implements the Stringer interface.
func (p phase) String() string {
	switch p {
	case phaseCreated:
		return "created"
	case phaseOpening:
		return "opening"
	case phaseOpened:
		return "opened"
	case phaseDrainingToBarrier:
		return "draining-to-barrier"
	case phaseDrainingToClose:
		return "draining-to-close"
	case phaseBarrier:
		return "barrier"
	case phaseClosing:
		return "closing"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(p))
	}
}

// The packed word holds the in-flight count in the low 32 bits and the
// phase in the bits above. The count is non-zero only in the opened and
// draining phases, so phase transitions and count updates commute through
// a single CompareAndSwap.
const (
	countBits = 32
	countMask = uint64(1)<<countBits - 1
)

func pack(p phase, count uint64) uint64 { return uint64(p)<<countBits | count }
func phaseOf(w uint64) phase            { return phase(w >> countBits) }
func countOf(w uint64) uint64           { return w & countMask }

// SM coordinates the lifecycle of one resource. The zero value is usable
// and equivalent to New("").
//
// Phase transitions for the begin operations:
//
//	phase \ op           | OpenBegin | CloseBegin         | ExecBegin  | BarrierBegin
//	---------------------+-----------+--------------------+------------+--------------
//	created              | → opening | refused            | refused    | refused
//	opening              | refused   | refused            | refused    | refused
//	opened               | refused   | → closing (drain)  | count++    | → barrier (drain)
//	draining-to-barrier  | refused   | → closing (preempt)| refused    | refused
//	draining-to-close    | refused   | refused            | refused    | refused
//	barrier              | refused   | → closing          | refused    | refused
//	closing              | refused   | refused            | refused    | refused
type SM struct {
	_    pad
	word atomix.Uint64 // phase and in-flight count
	_    pad
	name string
}

// New returns a coordinator in the created phase. name is kept for
// diagnostics only and is never interpreted.
func New(name string) *SM {
	s := &SM{name: name}
	s.word.StoreRelaxed(pack(phaseCreated, 0))
	return s
}

// Name returns the diagnostic name given to New.
func (s *SM) Name() string {
	return s.name
}

// OpenBegin requests the transition toward opened. It is granted only in
// the created phase; the caller must conclude the attempt with OpenEnd.
func (s *SM) OpenBegin() error {
	sw := spin.Wait{}
	for {
		w := s.word.LoadAcquire()
		if phaseOf(w) != phaseCreated {
			return ErrRefused
		}
		if s.word.CompareAndSwapAcqRel(w, pack(phaseOpening, 0)) {
			return nil
		}
		sw.Once()
	}
}

// OpenEnd concludes an attempt granted by OpenBegin. success moves the
// machine to opened; failure returns it to created with a zero in-flight
// count. Without a granted OpenBegin the call is a no-op.
func (s *SM) OpenEnd(success bool) {
	next := pack(phaseCreated, 0)
	if success {
		next = pack(phaseOpened, 0)
	}
	sw := spin.Wait{}
	for {
		w := s.word.LoadAcquire()
		if phaseOf(w) != phaseOpening {
			return
		}
		if s.word.CompareAndSwapAcqRel(w, next) {
			return
		}
		sw.Once()
	}
}

// ExecBegin requests permission for one non-barrier operation. It is
// granted only in the opened phase, while no barrier or close is pending.
// Every grant must be paired with ExecEnd. ExecBegin is lock-free: it
// validates the phase and increments the in-flight count in a single
// compare-and-swap.
func (s *SM) ExecBegin() error {
	sw := spin.Wait{}
	for {
		w := s.word.LoadAcquire()
		if phaseOf(w) != phaseOpened {
			return ErrRefused
		}
		if s.word.CompareAndSwapAcqRel(w, w+1) {
			return nil
		}
		sw.Once()
	}
}

// ExecEnd concludes an operation granted by ExecBegin. A pending barrier
// or close proceeds once the last in-flight operation ends. With no
// operation in flight the call is a no-op; an unmatched call made while
// other operations are in flight is not detected and lowers their count.
func (s *SM) ExecEnd() {
	sw := spin.Wait{}
	for {
		w := s.word.LoadAcquire()
		switch phaseOf(w) {
		case phaseOpened, phaseDrainingToBarrier, phaseDrainingToClose:
		default:
			return
		}
		if countOf(w) == 0 {
			return
		}
		if s.word.CompareAndSwapAcqRel(w, w-1) {
			return
		}
		sw.Once()
	}
}

// BarrierBegin requests exclusive access. It is granted only from the
// opened phase: the call publishes the barrier intent, which refuses
// further ExecBegin calls, then blocks until every in-flight operation has
// called ExecEnd. A concurrent CloseBegin preempts a draining barrier, in
// which case BarrierBegin returns ErrRefused. Every grant must be paired
// with BarrierEnd.
func (s *SM) BarrierBegin() error {
	sw := spin.Wait{}
	for {
		w := s.word.LoadAcquire()
		if phaseOf(w) != phaseOpened {
			return ErrRefused
		}
		if s.word.CompareAndSwapAcqRel(w, pack(phaseDrainingToBarrier, countOf(w))) {
			break
		}
		sw.Once()
	}

	backoff := iox.Backoff{}
	for {
		w := s.word.LoadAcquire()
		// A close may have taken over the drain; the phase decides.
		if phaseOf(w) != phaseDrainingToBarrier {
			return ErrRefused
		}
		if countOf(w) == 0 && s.word.CompareAndSwapAcqRel(w, pack(phaseBarrier, 0)) {
			return nil
		}
		backoff.Wait()
	}
}

// BarrierEnd concludes a barrier granted by BarrierBegin and returns the
// machine to opened. Without a granted barrier the call is a no-op.
func (s *SM) BarrierEnd() {
	sw := spin.Wait{}
	for {
		w := s.word.LoadAcquire()
		if phaseOf(w) != phaseBarrier {
			return
		}
		if s.word.CompareAndSwapAcqRel(w, pack(phaseOpened, 0)) {
			return
		}
		sw.Once()
	}
}

// CloseBegin requests the transition toward created. It is granted from
// the opened phase, from a held barrier, and from a barrier still draining,
// which it preempts; the preempted BarrierBegin returns ErrRefused. When
// granted from opened the call blocks until every in-flight operation has
// called ExecEnd. Close never loses to a pending barrier. Every grant must
// be paired with CloseEnd.
func (s *SM) CloseBegin() error {
	sw := spin.Wait{}
publish:
	for {
		w := s.word.LoadAcquire()
		switch phaseOf(w) {
		case phaseOpened, phaseDrainingToBarrier:
			if s.word.CompareAndSwapAcqRel(w, pack(phaseDrainingToClose, countOf(w))) {
				break publish
			}
		case phaseBarrier:
			if s.word.CompareAndSwapAcqRel(w, pack(phaseClosing, 0)) {
				return nil
			}
		default:
			return ErrRefused
		}
		sw.Once()
	}

	// Only this caller can move the machine out of draining-to-close, so
	// the wait is on the count alone.
	backoff := iox.Backoff{}
	for {
		w := s.word.LoadAcquire()
		if countOf(w) == 0 && s.word.CompareAndSwapAcqRel(w, pack(phaseClosing, 0)) {
			return nil
		}
		backoff.Wait()
	}
}

// CloseEnd concludes a close granted by CloseBegin and returns the machine
// to created, from which it may be reopened. Without a granted close the
// call is a no-op.
func (s *SM) CloseEnd() {
	sw := spin.Wait{}
	for {
		w := s.word.LoadAcquire()
		if phaseOf(w) != phaseClosing {
			return
		}
		if s.word.CompareAndSwapAcqRel(w, pack(phaseCreated, 0)) {
			return
		}
		sw.Once()
	}
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
