package entry

import (
	"strings"

	"github.com/lumen-wm/lumen-queryd/internal/match"
)

// Entry represents a single launchable item. Static metadata is fixed after
// construction; Score, Hidden and the usage fields are mutated by the query
// controller only.
type Entry struct {
	ID       string   // Stable unique identifier (desktop file id or path)
	Name     string   // Display name
	Comment  string   // Optional description
	Keywords []string // Optional search keywords
	Exec     string   // Launch command
	WorkDir  string   // Optional working directory
	Terminal bool     // Whether to run in a terminal
	CGroup   bool     // Whether to launch in its own scope
	Icon     string   // Optional icon reference

	// Per-query state
	Score  int
	Hidden bool

	// History weight inputs, refreshed from the history map
	Count    uint64
	LastUsed uint64
}

// New constructs an entry with per-query state reset to "not matching".
func New(id, name string) *Entry {
	return &Entry{
		ID:     id,
		Name:   name,
		Score:  match.NoScore,
		Hidden: true,
	}
}

// UpdateMatch recomputes Score and Hidden for the current query text.
// It touches no other entry and no history state.
func (e *Entry) UpdateMatch(text string, scorer *match.Scorer) {
	score, ok := scorer.ScoreFields(text, e.Name, e.Comment, e.Keywords)
	if !ok {
		e.Hide()
		return
	}
	e.Score = score
	e.Hidden = false
}

// Hide forces the entry out of the visible set and clears its score.
// Used unconditionally in command mode, without invoking the matcher.
func (e *Entry) Hide() {
	e.Hidden = true
	e.Score = match.NoScore
}

// Compare defines the strict total order consumed by the list sort:
// visible before hidden, then higher score, then higher launch count, then
// more recent use, then case-insensitive name, then id. Distinct ids never
// compare equal.
func (e *Entry) Compare(other *Entry) int {
	if e.Hidden != other.Hidden {
		if e.Hidden {
			return 1
		}
		return -1
	}
	if e.Score != other.Score {
		if e.Score > other.Score {
			return -1
		}
		return 1
	}
	if e.Count != other.Count {
		if e.Count > other.Count {
			return -1
		}
		return 1
	}
	if e.LastUsed != other.LastUsed {
		if e.LastUsed > other.LastUsed {
			return -1
		}
		return 1
	}
	if c := strings.Compare(strings.ToLower(e.Name), strings.ToLower(other.Name)); c != 0 {
		return c
	}
	return strings.Compare(e.ID, other.ID)
}
