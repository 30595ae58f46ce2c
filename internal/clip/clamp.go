// Package clip holds the pure boundary maths shared by the server-side
// highlight edit operation and interactive two-handle trimming.
package clip

import "errors"

// ErrDurationTooShort means the source video cannot fit even a minimum-length
// clip, so no valid range exists.
var ErrDurationTooShort = errors.New("video shorter than minimum clip length")

// Handle identifies which end of a clip a drag is moving.
type Handle int

const (
	HandleStart Handle = iota
	HandleEnd
)

// Clamp normalizes a requested [start, end) range against the video duration
// and the clip length constraints. Whenever total >= minLen the result
// satisfies 0 <= start, start+minLen <= end <= total and
// minLen <= end-start <= maxLen.
func Clamp(start, end, total, minLen, maxLen float64) (float64, float64, error) {
	if total < minLen {
		return 0, 0, ErrDurationTooShort
	}
	if maxLen < minLen {
		maxLen = minLen
	}

	// Swapped handles are normalized, never rejected.
	if end < start {
		start, end = end, start
	}

	if end-start < minLen {
		end = start + minLen
	} else if end-start > maxLen {
		end = start + maxLen
	}

	if start < 0 {
		start = 0
	}
	if start > total-minLen {
		start = total - minLen
	}

	if end < start+minLen {
		end = start + minLen
	}
	if end > total {
		end = total
	}

	// The duration clamps above can stretch the range past maxLen again
	// (start pulled left while end stayed at the ceiling). Shrink from the
	// start, which is the end that moved.
	if end-start > maxLen {
		start = end - maxLen
	}
	if end-start < minLen {
		start = end - minLen
		if start < 0 {
			start = 0
			end = minLen
		}
	}

	return start, end, nil
}

// ClampDrag recomputes a clip range while one handle is being dragged and the
// other is held fixed. The moving handle first gets its own bound derived from
// the fixed handle, so dragging past the other handle is a hard stop rather
// than a mid-drag swap, then the pair goes through Clamp.
func ClampDrag(h Handle, pos, fixed, total, minLen, maxLen float64) (float64, float64, error) {
	if total < minLen {
		return 0, 0, ErrDurationTooShort
	}
	if maxLen < minLen {
		maxLen = minLen
	}

	switch h {
	case HandleStart:
		lo := fixed - maxLen
		if lo < 0 {
			lo = 0
		}
		hi := fixed - minLen
		if hi < 0 {
			hi = 0
		}
		if pos < lo {
			pos = lo
		}
		if pos > hi {
			pos = hi
		}
		return Clamp(pos, fixed, total, minLen, maxLen)
	default:
		lo := fixed + minLen
		hi := fixed + maxLen
		if hi > total {
			hi = total
		}
		if lo > total {
			lo = total
		}
		if pos < lo {
			pos = lo
		}
		if pos > hi {
			pos = hi
		}
		return Clamp(fixed, pos, total, minLen, maxLen)
	}
}
