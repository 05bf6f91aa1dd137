// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cbuf

import "errors"

// ErrNilArgument indicates a nil Buffer, Array, or payload argument.
var ErrNilArgument = errors.New("cbuf: nil argument")

// ErrSectorSize indicates a zero sector size.
var ErrSectorSize = errors.New("cbuf: sector size must be positive")

// ErrTooLong indicates size arithmetic that would exceed the 32-bit wire
// format, or the operation's more conservative cap.
var ErrTooLong = errors.New("cbuf: size exceeds limit")

// ErrMalformed indicates an image or batch that does not parse: truncated
// bytes, trailing bytes, or an internally inconsistent size table.
var ErrMalformed = errors.New("cbuf: malformed input")
