// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cbuf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Image layout: count prefix, size table, payload. All integers are
// unsigned 32-bit little-endian.
const (
	headerCountSize = 4 // u32 count of buffers
	headerSizeSize  = 4 // u32 size of one buffer

	// maxSerializedSize caps Serialize below the full 32-bit range so its
	// output is always acceptable to a later sector-aligned prepend stage
	// with a sector of up to 4096 bytes.
	maxSerializedSize = math.MaxUint32 - (4096 - 1)
)

// serializedSize returns the element count of source and the total image
// size, refusing when the total would exceed max.
func serializedSize(source *Array, max uint32) (nBuffers, size uint32, err error) {
	nBuffers = source.Count()
	if max/headerSizeSize <= nBuffers {
		return 0, 0, fmt.Errorf("cbuf: %d buffers: %w", nBuffers, ErrTooLong)
	}
	all, err := source.AllBuffersSize()
	if err != nil {
		return 0, 0, err
	}
	size = headerCountSize + nBuffers*headerSizeSize
	if size > max-all {
		return 0, 0, fmt.Errorf("cbuf: %d buffers holding %d bytes: %w", nBuffers, all, ErrTooLong)
	}
	return nBuffers, size + all, nil
}

// serializeInto writes the count, size table and payload of source into
// dst. dst must be exactly the size reported by serializedSize.
func serializeInto(dst []byte, nBuffers uint32, source *Array) {
	binary.LittleEndian.PutUint32(dst, nBuffers)
	sizeOff := headerCountSize
	payloadOff := headerCountSize + int(nBuffers)*headerSizeSize
	for i := 0; i < int(nBuffers); i++ {
		content := source.BufferContent(i)
		binary.LittleEndian.PutUint32(dst[sizeOff:], uint32(len(content)))
		sizeOff += headerSizeSize
		payloadOff += copy(dst[payloadOff:], content)
	}
}

// GenerateHeader returns only the header of data's serialized form: the
// element count followed by the size table, 4 + 4·N bytes in total.
func GenerateHeader(data *Array) (*Buffer, error) {
	if data == nil {
		return nil, fmt.Errorf("cbuf: generate header: %w", ErrNilArgument)
	}
	nBuffers := data.Count()
	if nBuffers > (math.MaxUint32-headerCountSize)/headerSizeSize {
		return nil, fmt.Errorf("cbuf: header for %d buffers: %w", nBuffers, ErrTooLong)
	}
	header := make([]byte, headerCountSize+int(nBuffers)*headerSizeSize)
	binary.LittleEndian.PutUint32(header, nBuffers)
	for i := 0; i < int(nBuffers); i++ {
		n := data.Buffer(i).Len()
		if uint64(n) > math.MaxUint32 {
			return nil, fmt.Errorf("cbuf: buffer %d has %d bytes: %w", i, n, ErrTooLong)
		}
		binary.LittleEndian.PutUint32(header[headerCountSize+i*headerSizeSize:], uint32(n))
	}
	return NewBufferMove(header), nil
}

// Serialize returns the full serialized image of source. The result owns
// fresh storage; source is left untouched.
func Serialize(source *Array) (*Buffer, error) {
	if source == nil {
		return nil, fmt.Errorf("cbuf: serialize: %w", ErrNilArgument)
	}
	nBuffers, size, err := serializedSize(source, maxSerializedSize)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, size)
	serializeInto(dst, nBuffers, source)
	return NewBufferMove(dst), nil
}

// Deserialize parses an image produced by Serialize.
//
// The returned Array shares storage with source: every element aliases the
// image's payload region and holds a reference to source that is released
// when the element itself is released. No payload bytes are copied. The
// image must match the size table exactly; trailing bytes are an error.
func Deserialize(source *Buffer) (*Array, error) {
	if source == nil {
		return nil, fmt.Errorf("cbuf: deserialize: %w", ErrNilArgument)
	}
	content := source.Content()
	if len(content) < headerCountSize {
		return nil, fmt.Errorf("cbuf: image of %d bytes lacks a count: %w", len(content), ErrMalformed)
	}
	nBuffers := binary.LittleEndian.Uint32(content)
	if nBuffers == 0 {
		if len(content) != headerCountSize {
			return nil, fmt.Errorf("cbuf: %d bytes after empty image: %w", len(content)-headerCountSize, ErrMalformed)
		}
		return NewEmptyArray(), nil
	}
	if nBuffers > (math.MaxUint32-headerCountSize)/headerSizeSize {
		return nil, fmt.Errorf("cbuf: image promises %d buffers: %w", nBuffers, ErrTooLong)
	}
	total := uint32(headerCountSize) + nBuffers*headerSizeSize
	if uint64(total) > uint64(len(content)) {
		return nil, fmt.Errorf("cbuf: image of %d bytes cannot hold %d sizes: %w", len(content), nBuffers, ErrMalformed)
	}
	sizes := make([]uint32, nBuffers)
	for i := range sizes {
		sz := binary.LittleEndian.Uint32(content[headerCountSize+i*headerSizeSize:])
		if total > math.MaxUint32-sz {
			return nil, fmt.Errorf("cbuf: size table overflows at buffer %d: %w", i, ErrTooLong)
		}
		total += sz
		sizes[i] = sz
	}
	if uint64(total) != uint64(len(content)) {
		return nil, fmt.Errorf("cbuf: size table promises %d bytes, image has %d: %w", total, len(content), ErrMalformed)
	}
	elems := make([]*Buffer, nBuffers)
	off := headerCountSize + int(nBuffers)*headerSizeSize
	for i, sz := range sizes {
		end := off + int(sz)
		source.IncRef()
		elems[i] = NewBufferWithFree(content[off:end:end], source.DecRef)
		off = end
	}
	arr := NewArray(elems...)
	for _, e := range elems {
		e.DecRef()
	}
	return arr, nil
}

// SerializeWithPrepend returns an image that starts with the metadata
// bytes, continues with the serialized form of payload, and ends with
// padding up to a multiple of sectorSize. The second result is the number
// of padding bytes appended; padding content is unspecified by the format
// (this implementation leaves it zeroed).
func SerializeWithPrepend(metadata *Buffer, payload *Array, sectorSize uint32) (*Buffer, uint32, error) {
	if metadata == nil || payload == nil {
		return nil, 0, fmt.Errorf("cbuf: serialize with prepend: %w", ErrNilArgument)
	}
	if sectorSize == 0 {
		return nil, 0, fmt.Errorf("cbuf: serialize with prepend: %w", ErrSectorSize)
	}
	// Any total up to max can be padded to a multiple of sectorSize
	// without exceeding 32 bits.
	max := uint32(math.MaxUint32) - (sectorSize - 1)
	metadataContent := metadata.Content()
	if uint64(len(metadataContent)) >= math.MaxUint32 {
		return nil, 0, fmt.Errorf("cbuf: metadata of %d bytes: %w", len(metadataContent), ErrTooLong)
	}
	metadataSize := uint32(len(metadataContent))
	if metadataSize >= max {
		return nil, 0, fmt.Errorf("cbuf: metadata of %d bytes with sector %d: %w", metadataSize, sectorSize, ErrTooLong)
	}
	nBuffers, payloadSize, err := serializedSize(payload, max)
	if err != nil {
		return nil, 0, err
	}
	if payloadSize > max-metadataSize {
		return nil, 0, fmt.Errorf("cbuf: metadata %d + payload %d with sector %d: %w", metadataSize, payloadSize, sectorSize, ErrTooLong)
	}
	var padding uint32
	if rem := (metadataSize + payloadSize) % sectorSize; rem != 0 {
		padding = sectorSize - rem
	}
	size := metadataSize + payloadSize + padding
	dst := make([]byte, size)
	copy(dst, metadataContent)
	serializeInto(dst[metadataSize:metadataSize+payloadSize], nBuffers, payload)
	return NewBufferMove(dst), padding, nil
}
