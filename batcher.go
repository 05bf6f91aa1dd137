// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cbuf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Batch header layout: u32 payload count, then one u32 element count per
// payload, little-endian. The header occupies the batch's first element;
// payload buffers follow in order.

// Batch combines payloads into a single Array. The first element of the
// result is a header buffer recording how many elements each payload
// contributed; every payload buffer follows, shared by reference in
// order. No payload bytes are copied.
func Batch(payloads []*Array) (*Array, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("cbuf: batch of no payloads: %w", ErrNilArgument)
	}
	for i, p := range payloads {
		if p == nil {
			return nil, fmt.Errorf("cbuf: batch payload %d: %w", i, ErrNilArgument)
		}
	}
	if uint64(len(payloads)) > (math.MaxUint32-headerCountSize)/headerSizeSize {
		return nil, fmt.Errorf("cbuf: batch of %d payloads: %w", len(payloads), ErrTooLong)
	}
	count := uint32(len(payloads))
	header := make([]byte, headerCountSize+int(count)*headerSizeSize)
	binary.LittleEndian.PutUint32(header, count)
	totalBuffers := 0
	for i, p := range payloads {
		binary.LittleEndian.PutUint32(header[headerCountSize+i*headerSizeSize:], p.Count())
		totalBuffers += int(p.Count())
	}
	elems := make([]*Buffer, 0, 1+totalBuffers)
	headerBuffer := NewBufferMove(header)
	elems = append(elems, headerBuffer)
	for _, p := range payloads {
		for i := 0; i < int(p.Count()); i++ {
			elems = append(elems, p.Buffer(i))
		}
	}
	batch := NewArray(elems...)
	headerBuffer.DecRef() // owned by the batch now
	return batch, nil
}

// Unbatch splits a batch produced by Batch back into its payload Arrays.
// Each returned Array holds fresh references to the shared buffers; the
// batch itself is left untouched.
func Unbatch(batch *Array) ([]*Array, error) {
	if batch == nil {
		return nil, fmt.Errorf("cbuf: unbatch: %w", ErrNilArgument)
	}
	if batch.Count() == 0 {
		return nil, fmt.Errorf("cbuf: unbatch of empty array: %w", ErrMalformed)
	}
	header := batch.BufferContent(0)
	if len(header) < headerCountSize {
		return nil, fmt.Errorf("cbuf: batch header of %d bytes: %w", len(header), ErrMalformed)
	}
	count := binary.LittleEndian.Uint32(header)
	if count == 0 {
		return nil, fmt.Errorf("cbuf: batch of zero payloads: %w", ErrMalformed)
	}
	if count > (math.MaxUint32-headerCountSize)/headerSizeSize {
		return nil, fmt.Errorf("cbuf: batch header promises %d payloads: %w", count, ErrTooLong)
	}
	if len(header) != headerCountSize+int(count)*headerSizeSize {
		return nil, fmt.Errorf("cbuf: batch header of %d bytes for %d payloads: %w", len(header), count, ErrMalformed)
	}
	counts := make([]uint32, count)
	totalBuffers := uint64(0)
	for i := range counts {
		counts[i] = binary.LittleEndian.Uint32(header[headerCountSize+i*headerSizeSize:])
		totalBuffers += uint64(counts[i])
	}
	if totalBuffers != uint64(batch.Count())-1 {
		return nil, fmt.Errorf("cbuf: batch of %d buffers, header promises %d: %w", batch.Count()-1, totalBuffers, ErrMalformed)
	}
	out := make([]*Array, count)
	next := 1
	for i, n := range counts {
		bufs := make([]*Buffer, n)
		for j := range bufs {
			bufs[j] = batch.Buffer(next)
			next++
		}
		out[i] = NewArray(bufs...)
	}
	return out, nil
}
