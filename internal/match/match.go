package match

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// NoScore is the sentinel score for an entry that does not match the
// current query.
const NoScore = -1 << 62

// Field score bands. A hit on a higher-priority field always outranks a hit
// on a lower-priority one, regardless of raw fuzzy score. The bands are far
// wider than any raw score sahilm/fuzzy produces for realistic input.
const (
	nameBand    = 3_000_000
	commentBand = 2_000_000
	keywordBand = 1_000_000
)

// Scorer scores query text against entry metadata fields using fuzzy
// subsequence matching. It is total over any string input; an empty query
// matches everything at the neutral minimum score.
type Scorer struct {
	minScore int
}

// NewScorer creates a scorer. minScore is a raw fuzzy-score threshold below
// which a match is treated as no match; 0 disables the threshold.
func NewScorer(minScore int) *Scorer {
	return &Scorer{minScore: minScore}
}

// ScoreFields scores the query against the fields in priority order: name,
// then comment, then each keyword. The first field that matches wins.
// Returns (score, true) on a match, (NoScore, false) otherwise.
func (s *Scorer) ScoreFields(query, name, comment string, keywords []string) (int, bool) {
	if strings.TrimSpace(query) == "" {
		// Empty query matches every entry, unfiltered
		return 0, true
	}

	if raw, ok := s.scoreField(query, name); ok {
		return nameBand + raw, true
	}
	if raw, ok := s.scoreField(query, comment); ok {
		return commentBand + raw, true
	}
	for _, kw := range keywords {
		if raw, ok := s.scoreField(query, kw); ok {
			return keywordBand + raw, true
		}
	}

	return NoScore, false
}

// scoreField scores a single candidate string. Empty candidates are skipped.
func (s *Scorer) scoreField(query, candidate string) (int, bool) {
	if candidate == "" {
		return 0, false
	}

	matches := fuzzy.Find(query, []string{candidate})
	if len(matches) == 0 {
		return 0, false
	}

	raw := matches[0].Score
	if s.minScore != 0 && raw < s.minScore {
		return 0, false
	}
	return raw, true
}
