// Package registry is the single source of truth for which category and tag
// combinations are legal. The mapping lives in one TOML file that is
// rewritten in full on every mutation; readers in the same process never see
// a partial write.
package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"bilancio/internal/core"
)

// Category is one entry of the ordered category -> tags mapping.
type Category struct {
	Name string
	Tags []string
}

// Snapshot is a deep copy of the registry state, safe to hand to the budget
// engine without holding the registry lock.
type Snapshot struct {
	Categories []Category
}

// Registry holds the category/tag mapping and persists it to a TOML file.
type Registry struct {
	mu         sync.RWMutex
	path       string
	categories []Category
	protected  map[string]bool
}

type rawFile struct {
	Version  int        `toml:"version"`
	Category []rawEntry `toml:"category"`
}

type rawEntry struct {
	Name string   `toml:"name"`
	Tags []string `toml:"tags"`
}

// Open loads the registry from path, creating a default file when none
// exists. The protected set always contains the non-expense categories.
func Open(path string) (*Registry, error) {
	r := &Registry{
		path:      path,
		protected: make(map[string]bool),
	}
	for _, name := range core.NonExpenseCategories() {
		r.protected[strings.ToLower(name)] = true
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.categories = defaultCategories()
		if err := r.persistLocked(); err != nil {
			return nil, err
		}
		return r, nil
	}

	var raw rawFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	r.categories = normalize(raw)
	return r, nil
}

func defaultCategories() []Category {
	cats := make([]Category, 0, len(core.NonExpenseCategories()))
	for _, name := range core.NonExpenseCategories() {
		cats = append(cats, Category{Name: name})
	}
	return cats
}

// normalize trims blanks and drops duplicate tags, keeping first occurrence.
func normalize(raw rawFile) []Category {
	out := make([]Category, 0, len(raw.Category))
	seen := make(map[string]bool, len(raw.Category))
	for _, entry := range raw.Category {
		name := strings.TrimSpace(entry.Name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true

		tags := make([]string, 0, len(entry.Tags))
		tagSeen := make(map[string]bool, len(entry.Tags))
		for _, tag := range entry.Tags {
			tag = strings.TrimSpace(tag)
			if tag == "" || tagSeen[strings.ToLower(tag)] {
				continue
			}
			tagSeen[strings.ToLower(tag)] = true
			tags = append(tags, tag)
		}
		out = append(out, Category{Name: name, Tags: tags})
	}
	return out
}

// Snapshot returns a deep copy of the current mapping.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cats := make([]Category, len(r.categories))
	for i, c := range r.categories {
		cats[i] = Category{Name: c.Name, Tags: append([]string(nil), c.Tags...)}
	}
	return Snapshot{Categories: cats}
}

// AddCategory inserts an empty category. Returns false without persisting if
// the name is blank or already present (case-insensitive).
func (r *Registry) AddCategory(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(name) >= 0 {
		return false, nil
	}
	r.categories = append(r.categories, Category{Name: name})
	if err := r.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteCategory removes a category and its tags. Protected categories and
// absent names are refused.
func (r *Registry) DeleteCategory(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if r.protected[strings.ToLower(name)] {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(name)
	if idx < 0 {
		return false, nil
	}
	r.categories = append(r.categories[:idx], r.categories[idx+1:]...)
	if err := r.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// AddTag appends a tag under a category. Absent category or already-present
// tag (case-insensitive) returns false.
func (r *Registry) AddTag(category, tag string) (bool, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(category)
	if idx < 0 {
		return false, nil
	}
	if tagIndex(r.categories[idx].Tags, tag) >= 0 {
		return false, nil
	}
	r.categories[idx].Tags = append(r.categories[idx].Tags, tag)
	if err := r.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteTag removes a tag from a category. Absent category or tag returns
// false, which makes repeated deletes idempotent at the caller.
func (r *Registry) DeleteTag(category, tag string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(category)
	if idx < 0 {
		return false, nil
	}
	ti := tagIndex(r.categories[idx].Tags, tag)
	if ti < 0 {
		return false, nil
	}
	tags := r.categories[idx].Tags
	r.categories[idx].Tags = append(tags[:ti], tags[ti+1:]...)
	if err := r.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// ReallocateTags moves the given tags from one category to another,
// de-duplicating at the destination. Either category absent returns false.
func (r *Registry) ReallocateTags(from, to string, tags []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fromIdx := r.indexLocked(from)
	toIdx := r.indexLocked(to)
	if fromIdx < 0 || toIdx < 0 {
		return false, nil
	}

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if ti := tagIndex(r.categories[fromIdx].Tags, tag); ti >= 0 {
			src := r.categories[fromIdx].Tags
			r.categories[fromIdx].Tags = append(src[:ti], src[ti+1:]...)
		}
		if tagIndex(r.categories[toIdx].Tags, tag) < 0 {
			r.categories[toIdx].Tags = append(r.categories[toIdx].Tags, tag)
		}
	}
	if err := r.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// TagsFor returns the ordered tags of a category from a snapshot.
func (s Snapshot) TagsFor(category string) ([]string, bool) {
	for _, c := range s.Categories {
		if strings.EqualFold(c.Name, category) {
			return c.Tags, true
		}
	}
	return nil, false
}

// HasCategory reports whether the snapshot knows the category.
func (s Snapshot) HasCategory(category string) bool {
	_, ok := s.TagsFor(category)
	return ok
}

func (r *Registry) indexLocked(name string) int {
	for i, c := range r.categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

func tagIndex(tags []string, tag string) int {
	for i, t := range tags {
		if strings.EqualFold(t, strings.TrimSpace(tag)) {
			return i
		}
	}
	return -1
}

// persistLocked rewrites the whole file. Rendering is deterministic so the
// file diffs cleanly under version control.
func (r *Registry) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("version = 1\n")
	for _, c := range r.categories {
		b.WriteString("\n[[category]]\n")
		fmt.Fprintf(&b, "name = %q\n", c.Name)
		b.WriteString("tags = [")
		for i, tag := range c.Tags {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q", tag)
		}
		b.WriteString("]\n")
	}

	if err := os.WriteFile(r.path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	return nil
}
