// Package catalog provides the routine library: breathing patterns, gaze
// cue sets, exposure prompts, meeting phrase banks and tips. Built-in
// routines are embedded; user files in the search path add to or shadow
// them by ID.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Compile-time interface check.
var _ domain.RoutineSource = (*Catalog)(nil)

// Catalog holds the merged routine library. Safe for concurrent use.
type Catalog struct {
	dirs []string
	log  *logger.Logger

	mu           sync.RWMutex
	patterns     map[string]*domain.Pattern
	patternOrder []string
	cueSets      map[string]*domain.CueSet
	cueOrder     []string
	prompts      map[string]*domain.PromptSet
	banks        map[string]*domain.PhraseBank
	bankOrder    []string
	tips         []domain.TipSet
}

// New loads the built-in library plus any routine files in dirs. Earlier
// directories take precedence.
func New(log *logger.Logger, dirs ...string) (*Catalog, error) {
	c := &Catalog{dirs: dirs, log: log}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dirs returns the directories the catalog reads from.
func (c *Catalog) Dirs() []string {
	return append([]string(nil), c.dirs...)
}

// Reload re-reads every routine directory. On error the previous library
// stays in place.
func (c *Catalog) Reload() error {
	var docs []*document
	for _, dir := range c.dirs {
		found, err := loadDir(dir)
		if err != nil {
			return err
		}
		docs = append(docs, found...)
	}
	builtin, err := loadBuiltin()
	if err != nil {
		return err
	}
	docs = append(docs, builtin...)

	next := &Catalog{}
	if err := next.merge(docs); err != nil {
		return err
	}

	c.mu.Lock()
	c.patterns, c.patternOrder = next.patterns, next.patternOrder
	c.cueSets, c.cueOrder = next.cueSets, next.cueOrder
	c.prompts = next.prompts
	c.banks, c.bankOrder = next.banks, next.bankOrder
	c.tips = next.tips
	c.mu.Unlock()

	c.log.Debug("catalog loaded: %d patterns, %d cue sets, %d meeting types",
		len(next.patterns), len(next.cueSets), len(next.banks))
	return nil
}

// merge builds the library from docs in precedence order. The first
// document to define an ID wins.
func (c *Catalog) merge(docs []*document) error {
	c.patterns = make(map[string]*domain.Pattern)
	c.cueSets = make(map[string]*domain.CueSet)
	c.prompts = make(map[string]*domain.PromptSet)
	c.banks = make(map[string]*domain.PhraseBank)

	groups := make(map[string][]string)
	for _, doc := range docs {
		for name, lines := range doc.PhraseGroups {
			if _, ok := groups[name]; !ok {
				groups[name] = lines
			}
		}
	}

	seenTips := make(map[string]bool)
	for _, doc := range docs {
		for _, p := range doc.Patterns {
			key := normalize(p.ID)
			if _, ok := c.patterns[key]; ok {
				continue
			}
			pattern, err := p.toDomain()
			if err != nil {
				return fmt.Errorf("%s: pattern %q: %w", doc.source, p.ID, err)
			}
			c.patterns[key] = pattern
			c.patternOrder = append(c.patternOrder, key)
		}

		for _, cs := range doc.CueSets {
			key := normalize(cs.ID)
			if _, ok := c.cueSets[key]; ok {
				continue
			}
			set, err := cs.toDomain()
			if err != nil {
				return fmt.Errorf("%s: cue set %q: %w", doc.source, cs.ID, err)
			}
			c.cueSets[key] = set
			c.cueOrder = append(c.cueOrder, key)
		}

		for _, ps := range doc.PromptSets {
			key := normalize(ps.ID)
			if _, ok := c.prompts[key]; ok {
				continue
			}
			name := ps.Name
			if name == "" {
				name = ps.ID
			}
			c.prompts[key] = &domain.PromptSet{
				ID:      ps.ID,
				Name:    name,
				Prompts: append([]string(nil), ps.Prompts...),
			}
		}

		for _, b := range doc.PhraseBanks {
			key := normalize(b.MeetingType)
			if _, ok := c.banks[key]; ok {
				continue
			}
			lines := append([]string(nil), b.Lines...)
			for _, g := range b.Include {
				extra, ok := groups[g]
				if !ok {
					return fmt.Errorf("%s: phrase bank %q: unknown group %q: %w",
						doc.source, b.MeetingType, g, domain.ErrNotFound)
				}
				lines = append(lines, extra...)
			}
			c.banks[key] = &domain.PhraseBank{MeetingType: b.MeetingType, Lines: lines}
			c.bankOrder = append(c.bankOrder, key)
		}

		for _, ts := range doc.Tips {
			key := normalize(ts.ID)
			if seenTips[key] {
				continue
			}
			seenTips[key] = true
			name := ts.Name
			if name == "" {
				name = ts.ID
			}
			c.tips = append(c.tips, domain.TipSet{
				ID:   ts.ID,
				Name: name,
				Tips: append([]string(nil), ts.Tips...),
			})
		}
	}
	return nil
}

// Patterns returns summaries of every pattern sorted by name.
func (c *Catalog) Patterns(ctx context.Context) ([]domain.PatternSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.PatternSummary, 0, len(c.patterns))
	for _, key := range c.patternOrder {
		out = append(out, c.patterns[key].Summary())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Pattern finds a pattern by ID or case-insensitive name.
func (c *Catalog) Pattern(ctx context.Context, idOrName string) (*domain.Pattern, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := normalize(idOrName)
	if p, ok := c.patterns[q]; ok {
		return clonePattern(p), nil
	}
	for _, key := range c.patternOrder {
		p := c.patterns[key]
		if normalize(p.Name) == q {
			return clonePattern(p), nil
		}
	}
	c.log.Debug("pattern not found: %s", idOrName)
	return nil, fmt.Errorf("pattern %q: %w", idOrName, domain.ErrNotFound)
}

// CueSet finds a cue set by ID or case-insensitive name.
func (c *Catalog) CueSet(ctx context.Context, idOrName string) (*domain.CueSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := normalize(idOrName)
	if cs, ok := c.cueSets[q]; ok {
		return cloneCueSet(cs), nil
	}
	for _, key := range c.cueOrder {
		cs := c.cueSets[key]
		if normalize(cs.Name) == q {
			return cloneCueSet(cs), nil
		}
	}
	return nil, fmt.Errorf("cue set %q: %w", idOrName, domain.ErrNotFound)
}

// CueSets returns every cue set in load order.
func (c *Catalog) CueSets(ctx context.Context) ([]domain.CueSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.CueSet, 0, len(c.cueOrder))
	for _, key := range c.cueOrder {
		out = append(out, *cloneCueSet(c.cueSets[key]))
	}
	return out, nil
}

// PromptSet returns the exposure prompts with the given ID.
func (c *Catalog) PromptSet(ctx context.Context, id string) (*domain.PromptSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ps, ok := c.prompts[normalize(id)]
	if !ok {
		return nil, fmt.Errorf("prompt set %q: %w", id, domain.ErrNotFound)
	}
	return &domain.PromptSet{
		ID:      ps.ID,
		Name:    ps.Name,
		Prompts: append([]string(nil), ps.Prompts...),
	}, nil
}

// PhraseBank returns the practice lines for a meeting type.
func (c *Catalog) PhraseBank(ctx context.Context, meetingType string) (*domain.PhraseBank, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.banks[normalize(meetingType)]
	if !ok {
		return nil, fmt.Errorf("meeting type %q: %w", meetingType, domain.ErrNotFound)
	}
	return &domain.PhraseBank{
		MeetingType: b.MeetingType,
		Lines:       append([]string(nil), b.Lines...),
	}, nil
}

// MeetingTypes lists meeting types in load order.
func (c *Catalog) MeetingTypes(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.bankOrder))
	for _, key := range c.bankOrder {
		out = append(out, c.banks[key].MeetingType)
	}
	return out, nil
}

// Tips returns every tip set in load order.
func (c *Catalog) Tips(ctx context.Context) ([]domain.TipSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.TipSet, len(c.tips))
	for i, ts := range c.tips {
		out[i] = domain.TipSet{ID: ts.ID, Name: ts.Name, Tips: append([]string(nil), ts.Tips...)}
	}
	return out, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clonePattern(p *domain.Pattern) *domain.Pattern {
	out := *p
	out.Phases = append([]domain.Phase(nil), p.Phases...)
	return &out
}

func cloneCueSet(cs *domain.CueSet) *domain.CueSet {
	out := *cs
	out.Cues = append([]string(nil), cs.Cues...)
	return &out
}
