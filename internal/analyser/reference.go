package analyser

// ReferenceTracker holds the operator's zero reference. It is independent of
// profile updates and is never cleared once set.
type ReferenceTracker struct {
	value     float64
	set       bool
	observers observers[float64]
}

// NewReferenceTracker returns a tracker with no reference set.
func NewReferenceTracker() *ReferenceTracker {
	return &ReferenceTracker{}
}

// Set stores v without validation and notifies every subscriber, even when
// v equals the current value.
func (r *ReferenceTracker) Set(v float64) {
	r.value = v
	r.set = true
	r.observers.notify(v)
}

// Get returns the current reference and whether one has been set.
func (r *ReferenceTracker) Get() (float64, bool) {
	return r.value, r.set
}

// Subscribe registers fn for reference changes and returns a function that
// removes it.
func (r *ReferenceTracker) Subscribe(fn func(float64)) func() {
	return r.observers.add(fn)
}
