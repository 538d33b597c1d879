package combat

import (
	"math/rand"
)

// RNGKind selects how a Source produces its draws.
type RNGKind int

const (
	RNGThread RNGKind = iota // math/rand backed, seeded
	RNGLegacy                // 16-bit legacy generator, fully reproducible
	RNGBest                  // every forced draw favours the probes
	RNGWorst                 // every forced draw favours the drifters
)

func (k RNGKind) String() string {
	switch k {
	case RNGThread:
		return "thread"
	case RNGLegacy:
		return "legacy"
	case RNGBest:
		return "best"
	case RNGWorst:
		return "worst"
	default:
		return "unknown"
	}
}

// ParseRNGKind maps a config string onto an RNGKind. Unknown names fall back
// to RNGThread.
func ParseRNGKind(s string) RNGKind {
	switch s {
	case "legacy", "sm64":
		return RNGLegacy
	case "best":
		return RNGBest
	case "worst":
		return RNGWorst
	default:
		return RNGThread
	}
}

// Source is the single entry point for every probabilistic decision in the
// combat core. "best" always means best for the probe (Left) side.
type Source interface {
	// Bool returns true with the given probability. Forced kinds return best
	// (RNGBest) or !best (RNGWorst).
	Bool(probability float64, best bool) bool
	// Float returns a draw in [0,1). Forced kinds return 1 when oneIsBest,
	// otherwise 0 (inverted for RNGWorst).
	Float(oneIsBest bool) float64
	// FloatNoBest is a draw that is never forced; used for cosmetic spread.
	FloatNoBest() float64
	Kind() RNGKind
}

// RNG implements Source over one of the four kinds.
type RNG struct {
	kind   RNGKind
	legacy uint16
	seed   int64
	rng    *rand.Rand // thread draws and the no-best fallback for forced kinds
}

// NewRNG creates a source of the given kind. seed feeds math/rand for the
// thread kind and the no-best fallback, and the low 16 bits seed the legacy
// generator.
func NewRNG(kind RNGKind, seed int64) *RNG {
	if seed == 0 {
		seed = 1
	}
	return &RNG{
		kind:   kind,
		legacy: uint16(seed),
		seed:   seed,
		rng:    rand.New(rand.NewSource(seed)), // #nosec G404 -- game only
	}
}

// Kind reports which behaviour the source uses.
func (r *RNG) Kind() RNGKind { return r.kind }

// Seed returns the seed the source was created with.
func (r *RNG) Seed() int64 { return r.seed }

// LegacyState exposes the legacy generator state for save/load.
func (r *RNG) LegacyState() uint16 { return r.legacy }

// SetLegacyState restores the legacy generator state.
func (r *RNG) SetLegacyState(s uint16) { r.legacy = s }

func (r *RNG) Bool(probability float64, best bool) bool {
	probability = clamp(probability, 0, 1)
	if probability >= 1 {
		return true
	}
	if probability <= 0 {
		return false
	}
	switch r.kind {
	case RNGLegacy:
		return float64(sm64Next(&r.legacy))/65536.0 < probability
	case RNGBest:
		return best
	case RNGWorst:
		return !best
	default:
		return r.rng.Float64() < probability
	}
}

func (r *RNG) Float(oneIsBest bool) float64 {
	best, worst := 1.0, 0.0
	if !oneIsBest {
		best, worst = worst, best
	}
	switch r.kind {
	case RNGLegacy:
		return float64(sm64Next(&r.legacy)) / 65536.0
	case RNGBest:
		return best
	case RNGWorst:
		return worst
	default:
		return r.rng.Float64()
	}
}

func (r *RNG) FloatNoBest() float64 {
	switch r.kind {
	case RNGBest, RNGWorst:
		return r.rng.Float64()
	default:
		return r.Float(true)
	}
}

// sm64Next advances the 16-bit legacy generator and returns the new state.
func sm64Next(state *uint16) uint16 {
	if *state == 0x560a {
		*state = 0 // breaks a two-value loop
	}

	s0 := *state << 8
	s0 ^= *state

	*state = (s0&0x00ff)<<8 | (s0&0xff00)>>8
	s0 = (s0&0x00ff)<<1 ^ *state

	s1 := (s0 >> 1) ^ 0xff80

	if s0&1 == 0 {
		if s1 == 0xaa55 {
			*state = 0 // cycle reset at the 65114th value
		} else {
			*state = s1 ^ 0x1ff4
		}
	} else {
		*state = s1 ^ 0x8180
	}
	return *state
}
