package analyser

import (
	"errors"
	"fmt"

	"github.com/banshee-data/laserscope/internal/monitoring"
	"github.com/banshee-data/laserscope/internal/profile"
)

// DefaultRadiusLimit is the largest smoothing radius accepted unless
// WithRadiusLimit says otherwise.
const DefaultRadiusLimit = 200

// ErrRadiusOutOfRange is returned for a smoothing radius outside [0, limit].
var ErrRadiusOutOfRange = errors.New("smoothing radius out of range")

// ProfileChange is delivered to profile observers after every successful
// PushProfile. Normalized is a private copy owned by the receiver.
type ProfileChange struct {
	Normalized []float64 `json:"normalized"`
	Center     *float64  `json:"center"`
	// Length is the raw profile length, the domain of Center.
	Length int `json:"length"`
	Radius int `json:"radius"`
}

// Snapshot is a copy of the pipeline state.
type Snapshot struct {
	Normalized []float64 `json:"normalized"`
	Center     *float64  `json:"center"`
	Zero       *float64  `json:"zero"`
	Length     int       `json:"length"`
	Radius     int       `json:"radius"`
}

// DisplayCoordinates holds the center and zero positions mapped onto a
// display extent. Either is nil when the underlying value is absent.
type DisplayCoordinates struct {
	Height  float64  `json:"height"`
	CenterY *float64 `json:"center_y"`
	ZeroY   *float64 `json:"zero_y"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEstimator replaces the default Gaussian estimator.
func WithEstimator(e *profile.Estimator) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.estimator = e
		}
	}
}

// WithRadiusLimit sets the largest accepted smoothing radius.
func WithRadiusLimit(limit int) Option {
	return func(p *Pipeline) { p.radiusLimit = limit }
}

// WithRadius sets the initial smoothing radius.
func WithRadius(r int) Option {
	return func(p *Pipeline) { p.radius = r }
}

// Pipeline sequences smoothing, normalisation and center estimation for each
// raw profile and keeps the zero reference.
type Pipeline struct {
	estimator   *profile.Estimator
	radiusLimit int
	radius      int

	normalized []float64
	center     float64
	hasCenter  bool
	length     int

	reference *ReferenceTracker
	changes   observers[ProfileChange]
}

// New returns a Pipeline with no profile and no zero reference.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		estimator:   profile.DefaultEstimator(),
		radiusLimit: DefaultRadiusLimit,
		reference:   NewReferenceTracker(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.radiusLimit < 0 {
		return nil, fmt.Errorf("radius limit must be non-negative, got %d", p.radiusLimit)
	}
	if err := p.checkRadius(p.radius); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) checkRadius(r int) error {
	if r < 0 || r > p.radiusLimit {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrRadiusOutOfRange, r, p.radiusLimit)
	}
	return nil
}

// SetSmoothingRadius changes the radius used by the next PushProfile.
func (p *Pipeline) SetSmoothingRadius(r int) error {
	if err := p.checkRadius(r); err != nil {
		return err
	}
	p.radius = r
	return nil
}

// SmoothingRadius returns the radius the next PushProfile will use.
func (p *Pipeline) SmoothingRadius() int { return p.radius }

// RadiusLimit returns the largest accepted smoothing radius.
func (p *Pipeline) RadiusLimit() int { return p.radiusLimit }

// PushProfile analyses raw and replaces the stored profile and center.
//
// When smoothing fails (the radius is too large for the profile) the error
// is returned and the previous state is kept as a whole. Invalid samples are
// coerced to zero and reported through monitoring.Warnf.
func (p *Pipeline) PushProfile(raw []float64) error {
	clean, replaced := profile.Sanitize(raw)
	if replaced > 0 {
		monitoring.Warnf("profile: coerced %d of %d invalid samples to 0", replaced, len(raw))
	}

	smoothed, err := profile.Smooth(clean, p.radius)
	if err != nil {
		return fmt.Errorf("smooth profile: %w", err)
	}
	normalized := profile.Normalize(smoothed)
	center, ok := p.estimator.Center(clean)

	p.normalized = normalized
	p.center, p.hasCenter = center, ok
	p.length = len(clean)

	p.changes.notify(ProfileChange{
		Normalized: cloneFloats(normalized),
		Center:     optional(center, ok),
		Length:     p.length,
		Radius:     p.radius,
	})
	return nil
}

// SetZero stores the zero reference and notifies zero observers. The stored
// profile is not recomputed.
func (p *Pipeline) SetZero(v float64) {
	p.reference.Set(v)
}

// Normalized returns a copy of the latest normalised profile, or nil before
// the first successful PushProfile.
func (p *Pipeline) Normalized() []float64 {
	return cloneFloats(p.normalized)
}

// Center returns the latest center estimate.
func (p *Pipeline) Center() (float64, bool) {
	return p.center, p.hasCenter
}

// Zero returns the zero reference.
func (p *Pipeline) Zero() (float64, bool) {
	return p.reference.Get()
}

// ProfileLength returns the length of the last accepted raw profile, or 0.
func (p *Pipeline) ProfileLength() int {
	return p.length
}

// Snapshot copies the current state.
func (p *Pipeline) Snapshot() Snapshot {
	zero, hasZero := p.reference.Get()
	return Snapshot{
		Normalized: cloneFloats(p.normalized),
		Center:     optional(p.center, p.hasCenter),
		Zero:       optional(zero, hasZero),
		Length:     p.length,
		Radius:     p.radius,
	}
}

// DisplayCoordinates maps the center and zero onto a display of the given
// height using the length of the last accepted raw profile. Both positions
// are absent until a profile long enough to map has been accepted.
func (p *Pipeline) DisplayCoordinates(height float64) DisplayCoordinates {
	coords := DisplayCoordinates{Height: height}
	m, err := NewMapper(p.length, height)
	if err != nil {
		return coords
	}
	if p.hasCenter {
		coords.CenterY = optional(m.ToDisplay(p.center), true)
	}
	if zero, ok := p.reference.Get(); ok {
		coords.ZeroY = optional(m.ToDisplay(zero), true)
	}
	return coords
}

// OnProfileChanged registers fn for profile updates. The returned function
// unregisters it.
func (p *Pipeline) OnProfileChanged(fn func(ProfileChange)) func() {
	return p.changes.add(fn)
}

// OnZeroChanged registers fn for zero reference updates. The returned
// function unregisters it.
func (p *Pipeline) OnZeroChanged(fn func(float64)) func() {
	return p.reference.Subscribe(fn)
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func cloneFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}
	return append([]float64(nil), s...)
}
