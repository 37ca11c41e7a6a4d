package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-planner/internal/plan"
)

// Loader loads and caches subject templates from the filesystem.
type Loader struct {
	rootDir   string
	templates map[string]Template
	mu        sync.RWMutex
}

// NewLoader creates a loader and reads every template under rootDir.
// A missing directory yields an empty catalog.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:   rootDir,
		templates: make(map[string]Template),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded", "dir", rootDir, "templates", len(l.templates))
	return l, nil
}

// Get returns a template by ID.
func (l *Loader) Get(id string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[id]
	return t, ok
}

// Templates returns all loaded templates ordered by ID.
func (l *Loader) Templates() []Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Template, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Match picks the template whose subject or keyword appears in subject.
// The longest matching keyword wins, so "medeni hukuk" beats "hukuk".
func (l *Loader) Match(subject string) (Template, bool) {
	if l == nil {
		return Template{}, false
	}
	folded := plan.Fold(subject)
	if strings.TrimSpace(folded) == "" {
		return Template{}, false
	}

	var best Template
	bestLen := 0
	for _, t := range l.Templates() {
		for _, kw := range t.Keywords() {
			if len(kw) > bestLen && strings.Contains(folded, kw) {
				best, bestLen = t, len(kw)
			}
		}
	}
	return best, bestLen > 0
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadTemplate(path)
		}
		return nil
	})
}

func (l *Loader) loadTemplate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		slog.Warn("skipping invalid template YAML", "path", path, "error", err)
		return nil
	}
	if t.Subject == "" {
		return nil // Not a template file
	}
	if t.ID == "" {
		t.ID = plan.TopicID(t.Subject)
	}

	l.mu.Lock()
	l.templates[t.ID] = t
	l.mu.Unlock()

	return nil
}
