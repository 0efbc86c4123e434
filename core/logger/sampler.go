package logger

import (
	"strconv"
	"strings"
	"sync"
)

// keySampler lets numerator out of every denominator events through, counted
// separately per key so a burst of one update kind does not hide another.
type keySampler struct {
	mu          sync.Mutex
	numerator   int
	denominator int
	counters    map[string]int
}

func newKeySampler(numerator, denominator int) *keySampler {
	s := &keySampler{}
	s.Set(numerator, denominator)
	return s
}

// Set replaces the ratio and resets all counters. A zero ratio passes everything.
func (s *keySampler) Set(numerator, denominator int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if numerator <= 0 || denominator <= 0 {
		numerator, denominator = 0, 0
	}
	s.numerator = min(numerator, denominator)
	s.denominator = denominator
	s.counters = make(map[string]int)
}

// Allow reports whether the next event for key passes sampling.
func (s *keySampler) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denominator == 0 {
		return true
	}
	n := s.counters[key]%s.denominator + 1
	s.counters[key] = n
	return n <= s.numerator
}

// parseRatioSpec accepts "n/d" or a bare "d" meaning 1/d.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
