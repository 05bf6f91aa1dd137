// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sm provides a lock-free lifecycle coordinator for resources that
// move through created → opening → opened → closing phases and that support
// barrier operations requiring exclusive access.
//
// # Model
//
// An [SM] answers begin/end pairs from any number of goroutines:
//
//   - OpenBegin/OpenEnd bracket the one attempt to open the resource.
//   - ExecBegin/ExecEnd bracket ordinary (non-barrier) operations; any
//     number may be in flight while the resource is opened.
//   - BarrierBegin/BarrierEnd bracket an exclusive operation. A granted
//     barrier implies every previously granted ExecBegin has completed and
//     no new one is granted until BarrierEnd.
//   - CloseBegin/CloseEnd bracket closing. A granted close likewise drains
//     all in-flight operations first, and it preempts a barrier that is
//     still draining: the barrier caller observes the takeover and returns
//     ErrRefused.
//
// Every begin operation returns nil when granted and [ErrRefused] when the
// current phase forbids it. A refusal is a control-flow signal, not a
// failure, in the same way the ecosystem uses [iox.ErrWouldBlock]. The end
// operations never fail; an end called when nothing it could conclude is
// outstanding is a no-op. ExecEnd cannot tell callers apart: an unmatched
// ExecEnd while other operations are in flight lowers their count.
//
// After CloseEnd the machine is back in the created phase and may be
// reopened.
//
// # Blocking
//
// CloseBegin and BarrierBegin are the only operations that can block: when
// granted from the opened phase they first publish their intent, which
// refuses further ExecBegin calls, then wait for the in-flight count to
// drain to zero. All other operations complete in bounded time; ExecBegin
// and ExecEnd are lock-free.
//
// # Example
//
//	s := sm.New("segment-0")
//	if err := s.OpenBegin(); err == nil {
//		s.OpenEnd(openSegment() == nil)
//	}
//
//	// hot path, any goroutine
//	if err := s.ExecBegin(); err == nil {
//		appendRecord()
//		s.ExecEnd()
//	}
//
//	// exclusive maintenance
//	if err := s.BarrierBegin(); err == nil {
//		rotateSegment()
//		s.BarrierEnd()
//	}
package sm
