package output

import (
	"fmt"
	"sync"

	"github.com/glaslos/ssdeep"
	"github.com/root4loot/goutils/log"
)

// DefaultDuplicateThreshold is the similarity score at which two captures
// count as the same page.
const DefaultDuplicateThreshold = 96

// Deduper remembers fuzzy hashes of the captures kept so far.
type Deduper struct {
	threshold int

	mu   sync.Mutex
	kept []fingerprint
}

type fingerprint struct {
	source string
	hash   string
}

// NewDeduper returns a Deduper that treats captures scoring at least
// threshold (1-100) against a kept one as duplicates.
func NewDeduper(threshold int) (*Deduper, error) {
	if threshold < 1 || threshold > 100 {
		return nil, fmt.Errorf("invalid similarity threshold %d: must be between 1 and 100", threshold)
	}
	return &Deduper{threshold: threshold}, nil
}

// Seen reports whether b is similar to a capture kept earlier and, if so,
// which source that capture came from. Captures that are not duplicates are
// kept. Images too small to hash are never duplicates.
func (d *Deduper) Seen(source string, b []byte) (bool, string) {
	hash, err := ssdeep.FuzzyBytes(b)
	if err != nil {
		log.Debugf("Not checking %s for duplicates: %v", source, err)
		return false, ""
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, fp := range d.kept {
		score, err := ssdeep.Distance(hash, fp.hash)
		if err != nil {
			continue
		}
		if score >= d.threshold {
			log.Debugf("%s is similar to %s with a score of %d", source, fp.source, score)
			return true, fp.source
		}
	}

	d.kept = append(d.kept, fingerprint{source: source, hash: hash})
	return false, ""
}
