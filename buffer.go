// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cbuf

import "code.hybscloud.com/atomix"

// Buffer is an immutable reference-counted byte region.
//
// A Buffer starts with a reference count of one. IncRef and DecRef adjust
// the count; when it reaches zero the backing storage is dropped and, for
// buffers created with NewBufferWithFree, the free hook runs instead.
// The content must never be mutated, by any holder.
type Buffer struct {
	refs atomix.Int32
	data []byte
	free func()
}

func newBuffer(data []byte, free func()) *Buffer {
	b := &Buffer{data: data, free: free}
	b.refs.StoreRelaxed(1)
	return b
}

// NewBuffer returns a Buffer holding a copy of b.
func NewBuffer(b []byte) *Buffer {
	data := make([]byte, len(b))
	copy(data, b)
	return newBuffer(data, nil)
}

// NewBufferMove returns a Buffer that takes ownership of b.
// The caller must not read or write b afterwards.
func NewBufferMove(b []byte) *Buffer {
	return newBuffer(b, nil)
}

// NewBufferWithFree returns a Buffer over b without copying. free is
// invoked exactly once, when the reference count reaches zero, in place of
// any other release of b. Deserialize uses this to alias elements into
// their parent image.
func NewBufferWithFree(b []byte, free func()) *Buffer {
	return newBuffer(b, free)
}

// IncRef adds a reference.
func (b *Buffer) IncRef() {
	b.refs.Add(1)
}

// DecRef drops a reference. When the count reaches zero the free hook, if
// any, runs and the Buffer must not be used again. Dropping more
// references than were taken panics.
func (b *Buffer) DecRef() {
	switch n := b.refs.Add(-1); {
	case n == 0:
		b.data = nil
		if b.free != nil {
			b.free()
		}
	case n < 0:
		panic("cbuf: DecRef of released buffer")
	}
}

// Content returns the buffer bytes. The returned slice aliases the
// buffer's storage and must not be modified.
func (b *Buffer) Content() []byte {
	return b.data
}

// Len returns the content size in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}
