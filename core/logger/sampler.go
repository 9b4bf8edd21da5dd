package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets num out of every den events through. A zero ratio lets
// everything through.
type sampler struct {
	ratio atomic.Uint64 // num<<32 | den
	seen  atomic.Uint64
}

func (s *sampler) set(num, den int) {
	switch {
	case num <= 0 || den <= 0:
		s.ratio.Store(0)
	default:
		s.ratio.Store(uint64(min(num, den))<<32 | uint64(den))
	}
	s.seen.Store(0)
}

func (s *sampler) allow() bool {
	r := s.ratio.Load()
	if r == 0 {
		return true
	}
	num, den := r>>32, r&0xffffffff
	return (s.seen.Add(1)-1)%den < num
}

// parseRatio reads "num/den" or "N" (meaning 1/N). "0" disables sampling.
func parseRatio(spec string) (num, den int, ok bool) {
	spec = strings.TrimSpace(spec)
	if a, b, found := strings.Cut(spec, "/"); found {
		n, err1 := strconv.Atoi(strings.TrimSpace(a))
		d, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil || n < 0 || d <= 0 {
			return 0, 0, false
		}
		return n, d, true
	}
	v, err := strconv.Atoi(spec)
	switch {
	case err != nil || v < 0:
		return 0, 0, false
	case v == 0:
		return 0, 0, true
	}
	return 1, v, true
}
