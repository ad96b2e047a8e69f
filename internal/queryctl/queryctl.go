package queryctl

import (
	"log"
	"sort"
	"strings"

	"github.com/lumen-wm/lumen-queryd/internal/entry"
	"github.com/lumen-wm/lumen-queryd/internal/history"
	"github.com/lumen-wm/lumen-queryd/internal/match"
)

// Launcher spawns processes for the controller. Implemented by
// launch.Executor; tests substitute their own.
type Launcher interface {
	Launch(e *entry.Entry) error
	RunCommand(line string) error
}

// Event is the tagged union of external events the controller consumes.
type Event interface{ isEvent() }

// TextChanged carries the new raw query text.
type TextChanged struct{ Text string }

// Activated is the user confirming the current input (Enter).
type Activated struct{}

// RowSelected is the user confirming a specific entry by id.
type RowSelected struct{ ID string }

func (TextChanged) isEvent() {}
func (Activated) isEvent()   {}
func (RowSelected) isEvent() {}

// Row is a read-only snapshot of one visible entry for the presentation
// layer.
type Row struct {
	ID    string
	Name  string
	Score int
}

// Controller owns the entry working set, the history map and the query
// state. Events must be delivered serially: the controller holds no locks
// and every re-score runs to completion before the next event.
type Controller struct {
	entries []*entry.Entry // working set in ranked order
	byID    map[string]*entry.Entry

	history history.Map
	store   *history.Store

	scorer   *match.Scorer
	launcher Launcher
	prefix   string
	prune    bool

	text    string
	cmdMode bool
	cmdLine string
}

// New builds a controller around the discovered entry set. Duplicate ids are
// dropped, first wins. History is loaded (pruned against the entry set when
// configured) and its weights applied, then the empty query is evaluated so
// every entry starts visible at the neutral score.
func New(entries []*entry.Entry, store *history.Store, scorer *match.Scorer, launcher Launcher, cmdPrefix string, prune bool) *Controller {
	c := &Controller{
		store:    store,
		scorer:   scorer,
		launcher: launcher,
		prefix:   cmdPrefix,
		prune:    prune,
	}
	c.setEntries(entries)
	c.applyText("")
	return c
}

func (c *Controller) setEntries(entries []*entry.Entry) {
	c.entries = nil
	c.byID = make(map[string]*entry.Entry)
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, ok := c.byID[e.ID]; ok {
			// Later duplicates by id are dropped
			continue
		}
		c.byID[e.ID] = e
		c.entries = append(c.entries, e)
	}

	c.history = c.store.Load(c.prune, func(id string) bool {
		_, ok := c.byID[id]
		return ok
	})
	for _, e := range c.entries {
		if rec, ok := c.history[e.ID]; ok {
			e.Count = rec.Count
			e.LastUsed = rec.LastUsed
		}
	}
}

// Reset replaces the working set after a rescan. History weights are
// reloaded and the current query text re-evaluated so visibility state stays
// consistent.
func (c *Controller) Reset(entries []*entry.Entry) {
	c.setEntries(entries)
	c.applyText(c.text)
}

// Dispatch consumes one event.
func (c *Controller) Dispatch(ev Event) error {
	switch ev := ev.(type) {
	case TextChanged:
		c.applyText(ev.Text)
		return nil
	case Activated:
		return c.activate()
	case RowSelected:
		return c.selectRow(ev.ID)
	default:
		return nil
	}
}

func (c *Controller) applyText(text string) {
	c.text = text
	c.cmdMode = strings.HasPrefix(text, c.prefix)

	if c.cmdMode {
		c.cmdLine = strings.TrimSpace(text[len(c.prefix):])
		// Matching is meaningless in command mode, hide without scoring
		for _, e := range c.entries {
			e.Hide()
		}
		return
	}

	c.cmdLine = ""
	for _, e := range c.entries {
		e.UpdateMatch(text, c.scorer)
	}
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].Compare(c.entries[j]) < 0
	})
}

func (c *Controller) activate() error {
	if c.cmdMode {
		return c.launcher.RunCommand(c.cmdLine)
	}

	// Activation targets the top-ranked visible entry
	if len(c.entries) == 0 || c.entries[0].Hidden {
		return nil
	}
	return c.launchEntry(c.entries[0])
}

func (c *Controller) selectRow(id string) error {
	e, ok := c.byID[id]
	if !ok || e.Hidden {
		// Hidden or unknown entries are not valid launch targets
		log.Printf("[DEBUG] Rejected activation of entry %q", id)
		return nil
	}
	return c.launchEntry(e)
}

func (c *Controller) launchEntry(e *entry.Entry) error {
	if e.Hidden {
		return nil
	}

	if err := c.launcher.Launch(e); err != nil {
		log.Printf("[ERROR] Failed to launch %s: %v", e.ID, err)
		return err
	}

	c.history.RecordUse(e.ID)
	rec := c.history[e.ID]
	e.Count = rec.Count
	e.LastUsed = rec.LastUsed

	if err := c.store.Save(c.history); err != nil {
		// Best effort: the in-memory history stays authoritative
		log.Printf("[WARN] Failed to save history: %v", err)
	}
	return nil
}

// Visible returns the ranked visible entries, at most limit rows
// (limit <= 0 means no limit).
func (c *Controller) Visible(limit int) []Row {
	var rows []Row
	for _, e := range c.entries {
		if e.Hidden {
			break
		}
		rows = append(rows, Row{ID: e.ID, Name: e.Name, Score: e.Score})
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	return rows
}

// CommandMode reports whether the controller is in command mode and the
// extracted command line.
func (c *Controller) CommandMode() (bool, string) {
	return c.cmdMode, c.cmdLine
}

// Text returns the current raw query text.
func (c *Controller) Text() string {
	return c.text
}

// Count returns the size of the working set.
func (c *Controller) Count() int {
	return len(c.entries)
}

// History exposes the in-memory history map for inspection.
func (c *Controller) History() history.Map {
	return c.history
}
