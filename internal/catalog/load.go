package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/calmcoach/internal/domain"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// document is the on-disk shape of a routine file. Every section is
// optional, so one file can hold a single pattern or a whole library.
type document struct {
	Patterns     []patternDoc        `yaml:"patterns"`
	CueSets      []cueSetDoc         `yaml:"cue_sets"`
	PromptSets   []promptSetDoc      `yaml:"prompt_sets"`
	PhraseGroups map[string][]string `yaml:"phrase_groups"`
	PhraseBanks  []phraseBankDoc     `yaml:"phrase_banks"`
	Tips         []tipSetDoc         `yaml:"tips"`

	source string
}

type patternDoc struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Phases      []phaseDoc `yaml:"phases"`
}

type phaseDoc struct {
	Label   string `yaml:"label"`
	Seconds int    `yaml:"seconds"`
	Visual  string `yaml:"visual"`
	Say     string `yaml:"say"`
}

type cueSetDoc struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Cues     []string `yaml:"cues"`
	Interval string   `yaml:"interval"`
	Rounds   int      `yaml:"rounds"`
	Advice   string   `yaml:"advice"`
}

type promptSetDoc struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Prompts []string `yaml:"prompts"`
}

type phraseBankDoc struct {
	MeetingType string   `yaml:"meeting_type"`
	Lines       []string `yaml:"lines"`
	Include     []string `yaml:"include"`
}

type tipSetDoc struct {
	ID   string   `yaml:"id"`
	Name string   `yaml:"name"`
	Tips []string `yaml:"tips"`
}

// SearchPaths returns routine directories in precedence order. Files in
// earlier directories shadow entries with the same ID in later ones, and
// every directory shadows the built-in library.
func SearchPaths(projectDir string) []string {
	paths := make([]string, 0, 2)
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".calmcoach", "routines"))
	}
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		paths = append(paths, filepath.Join(dir, "calmcoach", "routines"))
	}
	return paths
}

// loadBuiltin parses the embedded routine files.
func loadBuiltin() ([]*document, error) {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, fmt.Errorf("read builtin routines: %w", err)
	}

	docs := make([]*document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := builtinFS.ReadFile("builtin/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read builtin routine %s: %w", entry.Name(), err)
		}
		doc, err := parseDocument(data)
		if err != nil {
			return nil, fmt.Errorf("parse builtin routine %s: %w", entry.Name(), err)
		}
		doc.source = "builtin"
		docs = append(docs, doc)
	}
	return docs, nil
}

// loadFile reads a single routine file.
func loadFile(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routine %s: %w", path, err)
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse routine %s: %w", path, err)
	}
	doc.source = path
	return doc, nil
}

// loadDir reads every .yaml/.yml file in dir, sorted by name. A missing
// directory yields no documents.
func loadDir(dir string) ([]*document, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read routines dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isRoutineFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make([]*document, 0, len(names))
	for _, name := range names {
		doc, err := loadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func isRoutineFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func parseDocument(data []byte) (*document, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	for i, p := range doc.Patterns {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("pattern %d: id and name are required", i+1)
		}
		if _, err := p.toDomain(); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.ID, err)
		}
	}
	for i, c := range doc.CueSets {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("cue set %d: id is required", i+1)
		}
		if _, err := c.toDomain(); err != nil {
			return nil, fmt.Errorf("cue set %q: %w", c.ID, err)
		}
	}
	for i, p := range doc.PromptSets {
		if strings.TrimSpace(p.ID) == "" || len(p.Prompts) == 0 {
			return nil, fmt.Errorf("prompt set %d: id and prompts are required", i+1)
		}
	}
	for i, b := range doc.PhraseBanks {
		if strings.TrimSpace(b.MeetingType) == "" {
			return nil, fmt.Errorf("phrase bank %d: meeting_type is required", i+1)
		}
	}
	return &doc, nil
}

func (p patternDoc) toDomain() (*domain.Pattern, error) {
	out := &domain.Pattern{
		ID:          strings.TrimSpace(p.ID),
		Name:        strings.TrimSpace(p.Name),
		Description: strings.TrimSpace(p.Description),
	}
	for i, ph := range p.Phases {
		v, err := domain.ParseVisual(ph.Visual)
		if err != nil {
			return nil, fmt.Errorf("phase %d: %w", i+1, err)
		}
		out.Phases = append(out.Phases, domain.Phase{
			Label:   strings.TrimSpace(ph.Label),
			Seconds: ph.Seconds,
			Visual:  v,
			Say:     strings.TrimSpace(ph.Say),
		})
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c cueSetDoc) toDomain() (*domain.CueSet, error) {
	if len(c.Cues) == 0 {
		return nil, domain.ErrEmptyPattern
	}
	interval := 3 * time.Second
	if s := strings.TrimSpace(c.Interval); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid interval: %w", err)
		}
		interval = d
	}
	if interval <= 0 {
		return nil, domain.ErrInvalidDuration
	}
	rounds := c.Rounds
	if rounds == 0 {
		rounds = 1
	}
	if rounds < 0 {
		return nil, domain.ErrInvalidCount
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = c.ID
	}
	return &domain.CueSet{
		ID:       strings.TrimSpace(c.ID),
		Name:     name,
		Cues:     append([]string(nil), c.Cues...),
		Interval: interval,
		Rounds:   rounds,
		Advice:   strings.TrimSpace(c.Advice),
	}, nil
}
