package analyzer

// Window is a fixed-capacity FIFO of outcome classifications with an
// incrementally maintained error count, so the rate is O(1) per record.
type Window struct {
	entries  []bool // true = error
	capacity int
	head     int // index of the oldest entry
	length   int
	errors   int
}

// NewWindow creates a window holding up to capacity outcomes
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		entries:  make([]bool, capacity),
		capacity: capacity,
	}
}

// Push inserts one classification, evicting the oldest entry when full
func (w *Window) Push(isError bool) {
	if w.length == w.capacity {
		if w.entries[w.head] {
			w.errors--
		}
		w.head = (w.head + 1) % w.capacity
		w.length--
	}

	tail := (w.head + w.length) % w.capacity
	w.entries[tail] = isError
	w.length++
	if isError {
		w.errors++
	}
}

// Len returns the number of outcomes currently held
func (w *Window) Len() int { return w.length }

// Errors returns the number of error-classified outcomes currently held
func (w *Window) Errors() int { return w.errors }

// RatePercent returns the current error rate as a percentage.
// Returns 0 for an empty window.
func (w *Window) RatePercent() float64 {
	if w.length == 0 {
		return 0
	}
	return float64(w.errors) / float64(w.length) * 100
}
