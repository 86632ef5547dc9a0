package matcher

import (
	"math"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Matcher resolves descriptors against an enrolled set by Euclidean
// nearest neighbour. The candidate order is fixed at construction, and
// among equal distances the earliest candidate wins.
type Matcher struct {
	refs []domain.Identity
}

// New keeps refs in the given order. Identities without a valid
// reference are kept but never considered.
func New(refs []domain.Identity) *Matcher {
	cp := make([]domain.Identity, len(refs))
	copy(cp, refs)
	return &Matcher{refs: cp}
}

// Len returns the number of candidates, absent references included.
func (m *Matcher) Len() int {
	return len(m.refs)
}

// Match returns the nearest identity when its distance is strictly below
// threshold, otherwise domain.Unknown with the smallest distance seen.
// Distance is +Inf when there is no valid candidate.
func (m *Matcher) Match(d domain.Descriptor, threshold float64) domain.Match {
	best := -1
	bestDistance := math.Inf(1)

	for i, ref := range m.refs {
		if !ref.Reference.Valid {
			continue
		}
		dist := d.Distance(ref.Reference.Vector)
		if dist < bestDistance {
			best = i
			bestDistance = dist
		}
	}

	if best >= 0 && bestDistance < threshold {
		return domain.Match{Name: m.refs[best].Name, Distance: bestDistance}
	}
	return domain.Match{Name: domain.Unknown, Distance: bestDistance}
}
