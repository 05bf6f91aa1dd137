// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cbuf provides immutable reference-counted buffers, buffer arrays,
// and a deterministic codec that flattens a buffer array into a single
// contiguous image and reconstructs it without copying payload bytes.
//
// # Buffers and arrays
//
// A [Buffer] is an immutable byte region with an explicit reference count.
// [NewBuffer] copies its input, [NewBufferMove] takes ownership of an
// existing slice, and [NewBufferWithFree] attaches a hook that runs when the
// count reaches zero — the mechanism [Deserialize] uses to alias a parent
// image from its elements.
//
// An [Array] is an ordered, reference-counted sequence of Buffers. Creating
// an Array adds a reference to every element; releasing the Array releases
// them.
//
// # Wire format
//
// [Serialize] produces a self-describing image: a count prefix, a size
// table, then the raw payload bytes. All integers are unsigned 32-bit
// little-endian.
//
//	| Count of buffers | Size of buffer 1 | ... | Size of buffer N | Buffer 1 | ... | Buffer N |
//	| 4 bytes          | 4 bytes          | ... | 4 bytes          | variable | ... | variable |
//
// The empty array encodes as the four bytes 00 00 00 00. [GenerateHeader]
// produces only the count and size table. [SerializeWithPrepend] places
// opaque metadata in front of the image and pads the result to a multiple
// of a caller-supplied sector size:
//
//	| Metadata | Count | Size table | Payload | Padding |
//
// # Zero-copy deserialization
//
// [Deserialize] never copies payload bytes. Every reconstructed element is a
// [Buffer] whose content aliases the image's payload region and which holds
// a reference to the image, released through the element's free hook. After
// the resulting Array and all of its elements are released, the image's
// reference count returns to its prior value.
//
// # Batching
//
// [Batch] combines several arrays into one by prepending a header buffer
// that records each payload's element count; [Unbatch] is the strict
// inverse. Payload buffers are shared by reference, never copied.
//
// # Errors
//
// Fallible operations return nil results with a sentinel error:
// [ErrNilArgument] for missing inputs, [ErrSectorSize] for a zero sector
// size, [ErrTooLong] for 32-bit size arithmetic that would overflow, and
// [ErrMalformed] for images that do not parse. Errors are wrapped with
// diagnostic context and match with errors.Is. Release operations never
// fail.
//
// # Concurrency
//
// Reference counts are atomic; IncRef, DecRef and all codec functions are
// safe for concurrent use. Buffer contents are immutable by contract and
// may be read from any goroutine. The lifecycle coordinator that usually
// guards a resource producing or consuming these images lives in the
// subpackage [code.hybscloud.com/cbuf/sm].
package cbuf
