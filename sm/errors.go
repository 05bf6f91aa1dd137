// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sm

import "errors"

// ErrRefused indicates that a begin operation was observed in a phase that
// forbids it. It is a control-flow signal, not a failure: the caller backs
// off, retries later, or gives up.
var ErrRefused = errors.New("sm: refused")

// IsRefused reports whether err indicates a refused begin operation.
// Supports wrapped errors.
func IsRefused(err error) bool {
	return errors.Is(err, ErrRefused)
}
