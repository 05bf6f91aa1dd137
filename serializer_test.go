// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cbuf

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// arrayOf builds an Array over fresh buffers holding the given contents.
// The array owns the sole reference to every element.
func arrayOf(t *testing.T, contents ...string) *Array {
	t.Helper()
	bufs := make([]*Buffer, len(contents))
	for i, c := range contents {
		bufs[i] = NewBuffer([]byte(c))
	}
	a := NewArray(bufs...)
	for _, b := range bufs {
		b.DecRef()
	}
	return a
}

// =============================================================================
// GenerateHeader
// =============================================================================

// TestGenerateHeaderTwoBuffers checks the exact header bytes for two
// 5-byte buffers: count 2, then the size table.
func TestGenerateHeaderTwoBuffers(t *testing.T) {
	a := arrayOf(t, "hello", "world")
	defer a.DecRef()

	h, err := GenerateHeader(a)
	if err != nil {
		t.Fatalf("GenerateHeader: %v", err)
	}
	defer h.DecRef()

	want := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x05, 0x00, 0x00, 0x00,
		0x05, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(h.Content(), want) {
		t.Fatalf("header: got % x, want % x", h.Content(), want)
	}
}

func TestGenerateHeaderEmpty(t *testing.T) {
	a := NewEmptyArray()
	defer a.DecRef()

	h, err := GenerateHeader(a)
	if err != nil {
		t.Fatalf("GenerateHeader: %v", err)
	}
	defer h.DecRef()

	if !bytes.Equal(h.Content(), []byte{0, 0, 0, 0}) {
		t.Fatalf("header: got % x, want 00 00 00 00", h.Content())
	}
}

func TestGenerateHeaderNil(t *testing.T) {
	if _, err := GenerateHeader(nil); !errors.Is(err, ErrNilArgument) {
		t.Fatalf("GenerateHeader(nil): got %v, want ErrNilArgument", err)
	}
}

// =============================================================================
// Serialize
// =============================================================================

// TestSerializeThreeBuffers is the canonical layout check: 10+20+30
// payload bytes behind a 16-byte header.
func TestSerializeThreeBuffers(t *testing.T) {
	contents := []string{
		strings.Repeat("a", 10),
		strings.Repeat("b", 20),
		strings.Repeat("c", 30),
	}
	a := arrayOf(t, contents...)
	defer a.DecRef()

	img, err := Serialize(a)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	defer img.DecRef()

	if img.Len() != 76 {
		t.Fatalf("image size: got %d, want 76", img.Len())
	}
	wantPrefix := []byte{
		0x03, 0x00, 0x00, 0x00,
		0x0A, 0x00, 0x00, 0x00,
		0x14, 0x00, 0x00, 0x00,
		0x1E, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(img.Content()[:16], wantPrefix) {
		t.Fatalf("image prefix: got % x, want % x", img.Content()[:16], wantPrefix)
	}
	if got, want := string(img.Content()[16:]), contents[0]+contents[1]+contents[2]; got != want {
		t.Fatalf("payload: got %q, want %q", got, want)
	}
}

// TestSerializeEmpty: the empty array is exactly the four count bytes.
func TestSerializeEmpty(t *testing.T) {
	a := NewEmptyArray()
	defer a.DecRef()

	img, err := Serialize(a)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	defer img.DecRef()

	if !bytes.Equal(img.Content(), []byte{0, 0, 0, 0}) {
		t.Fatalf("image: got % x, want 00 00 00 00", img.Content())
	}
}

func TestSerializeNil(t *testing.T) {
	if _, err := Serialize(nil); !errors.Is(err, ErrNilArgument) {
		t.Fatalf("Serialize(nil): got %v, want ErrNilArgument", err)
	}
}

// =============================================================================
// Deserialize - Success paths
// =============================================================================

// TestRoundTrip covers N = 0, 1, 2, 3 and a zero-size element.
func TestRoundTrip(t *testing.T) {
	cases := [][]string{
		{},
		{"solo"},
		{"first", ""},
		{strings.Repeat("a", 10), strings.Repeat("b", 20), strings.Repeat("c", 30)},
	}
	for _, contents := range cases {
		a := arrayOf(t, contents...)
		img, err := Serialize(a)
		if err != nil {
			t.Fatalf("Serialize(%q): %v", contents, err)
		}
		got, err := Deserialize(img)
		if err != nil {
			t.Fatalf("Deserialize(%q): %v", contents, err)
		}

		if got.Count() != uint32(len(contents)) {
			t.Fatalf("Count(%q): got %d, want %d", contents, got.Count(), len(contents))
		}
		for i, want := range contents {
			if c := got.BufferContent(i); string(c) != want {
				t.Fatalf("element %d: got %q, want %q", i, c, want)
			}
		}

		got.DecRef()
		img.DecRef()
		a.DecRef()
	}
}

// TestDeserializeZeroCopy verifies that every reconstructed element
// aliases the image's payload region rather than fresh storage.
func TestDeserializeZeroCopy(t *testing.T) {
	a := arrayOf(t, "aaaaaaaaaa", "bbbbb")
	defer a.DecRef()
	img, err := Serialize(a)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	defer img.DecRef()

	got, err := Deserialize(img)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	defer got.DecRef()

	off := 4 + 2*4
	for i := 0; i < int(got.Count()); i++ {
		elem := got.BufferContent(i)
		if &elem[0] != &img.Content()[off] {
			t.Fatalf("element %d: content does not alias the image at offset %d", i, off)
		}
		off += len(elem)
	}
}

// TestDeserializeRefcountNeutral: the image's count rises by one per
// element and returns to its prior value once the array is released.
func TestDeserializeRefcountNeutral(t *testing.T) {
	a := arrayOf(t, "aa", "bb", "cc")
	defer a.DecRef()
	img, err := Serialize(a)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	defer img.DecRef()

	before := img.refs.Load()
	got, err := Deserialize(img)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if n := img.refs.Load(); n != before+3 {
		t.Fatalf("image refs with array alive: got %d, want %d", n, before+3)
	}

	got.DecRef()
	if n := img.refs.Load(); n != before {
		t.Fatalf("image refs after release: got %d, want %d", n, before)
	}
}

// TestDeserializeKeepsImageAlive: the elements' references keep the image
// storage reachable after the caller drops its own handle.
func TestDeserializeKeepsImageAlive(t *testing.T) {
	freed := 0
	raw := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
		'x', 'y', 'z',
	}
	img := NewBufferWithFree(raw, func() { freed++ })

	got, err := Deserialize(img)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	img.DecRef()
	if freed != 0 {
		t.Fatalf("image freed while elements alive: freed=%d", freed)
	}
	if c := got.BufferContent(0); string(c) != "xyz" {
		t.Fatalf("element: got %q, want %q", c, "xyz")
	}

	got.DecRef()
	if freed != 1 {
		t.Fatalf("image free after array release: ran %d times, want 1", freed)
	}
}

// =============================================================================
// Deserialize - Failure paths
// =============================================================================

func TestDeserializeNil(t *testing.T) {
	if _, err := Deserialize(nil); !errors.Is(err, ErrNilArgument) {
		t.Fatalf("Deserialize(nil): got %v, want ErrNilArgument", err)
	}
}

func TestDeserializeMalformed(t *testing.T) {
	cases := []struct {
		name  string
		image []byte
		want  error
	}{
		{"short count", []byte{0x01, 0x00}, ErrMalformed},
		{"empty with trailing byte", []byte{0x00, 0x00, 0x00, 0x00, 0xFF}, ErrMalformed},
		{"truncated payload", []byte{
			0x01, 0x00, 0x00, 0x00,
			0x05, 0x00, 0x00, 0x00,
			'A', 'A', 'A',
		}, ErrMalformed},
		{"truncated size table", []byte{
			0x02, 0x00, 0x00, 0x00,
			0x01, 0x00, 0x00, 0x00,
		}, ErrMalformed},
		{"trailing payload bytes", []byte{
			0x01, 0x00, 0x00, 0x00,
			0x02, 0x00, 0x00, 0x00,
			'A', 'A', 'A',
		}, ErrMalformed},
		{"count overflows size table", []byte{
			0x00, 0x00, 0x00, 0x40,
		}, ErrTooLong},
		{"size table sum overflows", []byte{
			0x02, 0x00, 0x00, 0x00,
			0xFF, 0xFF, 0xFF, 0xFF,
			0x0A, 0x00, 0x00, 0x00,
		}, ErrTooLong},
	}
	for _, tc := range cases {
		img := NewBufferMove(tc.image)
		if _, err := Deserialize(img); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
		img.DecRef()
	}
}

// =============================================================================
// SerializeWithPrepend
// =============================================================================

// TestSerializeWithPrependPadding: 100 metadata bytes plus a 17-byte
// payload image inside one 4096-byte sector.
func TestSerializeWithPrependPadding(t *testing.T) {
	metadata := NewBufferMove(bytes.Repeat([]byte{0x4D}, 100))
	defer metadata.DecRef()
	payload := arrayOf(t, "hi", "all")
	defer payload.DecRef()

	img, padding, err := SerializeWithPrepend(metadata, payload, 4096)
	if err != nil {
		t.Fatalf("SerializeWithPrepend: %v", err)
	}
	defer img.DecRef()

	if img.Len() != 4096 {
		t.Fatalf("image size: got %d, want 4096", img.Len())
	}
	if padding != 4096-117 {
		t.Fatalf("padding: got %d, want %d", padding, 4096-117)
	}
	if !bytes.Equal(img.Content()[:100], metadata.Content()) {
		t.Fatal("metadata prefix does not match")
	}
	wantPayload := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
		'h', 'i', 'a', 'l', 'l',
	}
	if !bytes.Equal(img.Content()[100:117], wantPayload) {
		t.Fatalf("payload image: got % x, want % x", img.Content()[100:117], wantPayload)
	}
}

// TestSerializeWithPrependExactFit: a total that is already a sector
// multiple needs no padding.
func TestSerializeWithPrependExactFit(t *testing.T) {
	metadata := NewBufferMove(make([]byte, 12))
	defer metadata.DecRef()
	payload := NewEmptyArray()
	defer payload.DecRef()

	img, padding, err := SerializeWithPrepend(metadata, payload, 16)
	if err != nil {
		t.Fatalf("SerializeWithPrepend: %v", err)
	}
	defer img.DecRef()

	if img.Len() != 16 {
		t.Fatalf("image size: got %d, want 16", img.Len())
	}
	if padding != 0 {
		t.Fatalf("padding: got %d, want 0", padding)
	}
}

// TestSerializeWithPrependRoundTrip: the payload image region between the
// metadata and the padding deserializes back to the original payload.
func TestSerializeWithPrependRoundTrip(t *testing.T) {
	metadata := NewBuffer([]byte("meta"))
	defer metadata.DecRef()
	payload := arrayOf(t, "one", "twotwo")
	defer payload.DecRef()

	img, padding, err := SerializeWithPrepend(metadata, payload, 512)
	if err != nil {
		t.Fatalf("SerializeWithPrepend: %v", err)
	}
	defer img.DecRef()

	start := metadata.Len()
	end := img.Len() - int(padding)
	inner := NewBuffer(img.Content()[start:end])
	defer inner.DecRef()

	got, err := Deserialize(inner)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	defer got.DecRef()

	if got.Count() != 2 || string(got.BufferContent(0)) != "one" || string(got.BufferContent(1)) != "twotwo" {
		t.Fatal("round trip through the prepend image lost the payload")
	}
}

func TestSerializeWithPrependInvalidArgs(t *testing.T) {
	metadata := NewBuffer([]byte("meta"))
	defer metadata.DecRef()
	payload := NewEmptyArray()
	defer payload.DecRef()

	if _, _, err := SerializeWithPrepend(nil, payload, 512); !errors.Is(err, ErrNilArgument) {
		t.Fatalf("nil metadata: got %v, want ErrNilArgument", err)
	}
	if _, _, err := SerializeWithPrepend(metadata, nil, 512); !errors.Is(err, ErrNilArgument) {
		t.Fatalf("nil payload: got %v, want ErrNilArgument", err)
	}
	if _, _, err := SerializeWithPrepend(metadata, payload, 0); !errors.Is(err, ErrSectorSize) {
		t.Fatalf("zero sector size: got %v, want ErrSectorSize", err)
	}
}
