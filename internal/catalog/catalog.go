// Package catalog provides the fixed set of ad-view tasks a user can repeat.
// The catalogue is process-wide configuration, never persisted.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Catalog errors.
var (
	ErrEmptyCatalog  = errors.New("catalog has no tasks")
	ErrInvalidEntry  = errors.New("invalid catalog entry")
	ErrDuplicateTask = errors.New("duplicate task id")
)

// Entry describes one repeatable task.
type Entry struct {
	ID          string
	Title       string
	Description string
	Reward      decimal.Decimal
	AdsRequired int
}

// Validate checks that the entry has every required field.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: task %s has no title", ErrInvalidEntry, e.ID)
	}
	if !e.Reward.IsPositive() {
		return fmt.Errorf("%w: task %s reward must be positive", ErrInvalidEntry, e.ID)
	}
	if e.AdsRequired < 1 {
		return fmt.Errorf("%w: task %s needs at least one ad", ErrInvalidEntry, e.ID)
	}
	return nil
}

// Catalog is an ordered, validated set of tasks.
type Catalog struct {
	entries []Entry
	byID    map[string]Entry
}

// New validates the entries and builds a catalogue that keeps their order.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, ok := c.byID[e.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, e.ID)
		}
		e.Reward = e.Reward.Round(2)
		c.entries = append(c.entries, e)
		c.byID[e.ID] = e
	}
	return c, nil
}

// MustNew is New for static catalogues; it panics on invalid input.
func MustNew(entries []Entry) *Catalog {
	c, err := New(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultReward is the reward of every default task.
var DefaultReward = decimal.RequireFromString("1.62")

// DefaultAdsRequired is the number of ad views per default task.
const DefaultAdsRequired = 3

// DefaultEntries returns the three built-in tasks.
func DefaultEntries() []Entry {
	desc := fmt.Sprintf("Click all %d ad links to earn $%s", DefaultAdsRequired, DefaultReward.StringFixed(2))
	return []Entry{
		{ID: "task1", Title: "Ad Task Alpha", Description: desc, Reward: DefaultReward, AdsRequired: DefaultAdsRequired},
		{ID: "task2", Title: "Ad Task Beta", Description: desc, Reward: DefaultReward, AdsRequired: DefaultAdsRequired},
		{ID: "task3", Title: "Ad Task Gamma", Description: desc, Reward: DefaultReward, AdsRequired: DefaultAdsRequired},
	}
}

// Default returns the built-in catalogue.
func Default() *Catalog {
	return MustNew(DefaultEntries())
}

// All returns the tasks in display order. The slice is a copy.
func (c *Catalog) All() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Get returns the task with the given id.
func (c *Catalog) Get(id string) (Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// IDs returns the task ids in display order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.entries))
	for i, e := range c.entries {
		ids[i] = e.ID
	}
	return ids
}

// Len returns the number of tasks.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// FormatDuration renders a cooldown as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
