// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cbuf

import (
	"fmt"
	"math"

	"code.hybscloud.com/atomix"
)

// Array is an ordered, reference-counted sequence of Buffers.
//
// An Array holds one reference to every element for its own lifetime.
// Releasing the Array's last reference releases each element.
type Array struct {
	refs atomix.Int32
	bufs []*Buffer
}

// NewArray returns an Array over bufs, adding a reference to each element.
// The slice is copied; the caller keeps its own references.
func NewArray(bufs ...*Buffer) *Array {
	elems := make([]*Buffer, len(bufs))
	copy(elems, bufs)
	for _, b := range elems {
		b.IncRef()
	}
	a := &Array{bufs: elems}
	a.refs.StoreRelaxed(1)
	return a
}

// NewEmptyArray returns an Array with no elements.
func NewEmptyArray() *Array {
	return NewArray()
}

// IncRef adds a reference.
func (a *Array) IncRef() {
	a.refs.Add(1)
}

// DecRef drops a reference. When the count reaches zero every element is
// released and the Array must not be used again. Dropping more references
// than were taken panics.
func (a *Array) DecRef() {
	switch n := a.refs.Add(-1); {
	case n == 0:
		for _, b := range a.bufs {
			b.DecRef()
		}
		a.bufs = nil
	case n < 0:
		panic("cbuf: DecRef of released array")
	}
}

// Count returns the number of elements.
func (a *Array) Count() uint32 {
	return uint32(len(a.bufs))
}

// AllBuffersSize returns the sum of all element sizes.
// Returns ErrTooLong when any element or the running sum exceeds 32 bits.
func (a *Array) AllBuffersSize() (uint32, error) {
	var total uint32
	for i, b := range a.bufs {
		n := b.Len()
		if uint64(n) > math.MaxUint32 {
			return 0, fmt.Errorf("cbuf: buffer %d has %d bytes: %w", i, n, ErrTooLong)
		}
		if total > math.MaxUint32-uint32(n) {
			return 0, fmt.Errorf("cbuf: size sum overflows at buffer %d: %w", i, ErrTooLong)
		}
		total += uint32(n)
	}
	return total, nil
}

// Buffer returns the i-th element without adding a reference. The element
// is valid for as long as the Array holds its reference.
func (a *Array) Buffer(i int) *Buffer {
	return a.bufs[i]
}

// BufferContent returns the content of the i-th element. The returned
// slice aliases the element's storage and must not be modified.
func (a *Array) BufferContent(i int) []byte {
	return a.bufs[i].data
}
