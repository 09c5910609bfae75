package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

/*
Snippet is one reusable prompt fragment from the RAG library. Snippets are
selected by tag; a snippet with Locations set only activates when the
receipt's location (province/state code) is listed.
*/
type Snippet struct {
	Tag       string   `json:"tag"`
	Enabled   bool     `json:"enabled"`
	Locations []string `json:"locations,omitempty"`
	Text      string   `json:"text"`
}

/*
SnippetRegistry serves the on-disk snippet library to prompt formatting.
Read-mostly: workers call Select under a read lock, an admin reload swaps
the slice wholesale.
*/
type SnippetRegistry struct {
	mu       sync.RWMutex
	path     string
	snippets []Snippet
}

// NewSnippetRegistry loads the snippet library from path. A missing file is
// not fatal — prompts simply carry no RAG snippets.
func NewSnippetRegistry(path string) (registry *SnippetRegistry, e *xerr.Error) {
	registry = &SnippetRegistry{path: path}
	e = registry.Reload()
	return registry, e
}

// Reload re-reads the snippet file and atomically replaces the library.
func (r *SnippetRegistry) Reload() (e *xerr.Error) {
	if strings.TrimSpace(r.path) == "" {
		return nil
	}

	fileBytes, readErr := os.ReadFile(r.path)
	if readErr != nil {
		tl.Log(tl.Warning, palette.YellowDim, "RAG snippet file '%s' is %s, prompts will carry no snippets", r.path, "not readable")
		return nil
	}

	var loaded []Snippet
	if parseErr := json.Unmarshal(fileBytes, &loaded); parseErr != nil {
		return xerr.NewError(parseErr, "parse RAG snippet JSON", r.path)
	}

	r.mu.Lock()
	r.snippets = loaded
	r.mu.Unlock()

	tl.Log(tl.Info, palette.Green, "RAG snippet registry %s with '%s' snippets", "loaded", fmt.Sprintf("%d", len(loaded)))
	return nil
}

/*
Select returns the enabled snippets matching any of the given tags. A
snippet with a location filter additionally requires the receipt's location
to be listed (case-insensitive); snippets without a filter activate
everywhere.
*/
func (r *SnippetRegistry) Select(tags []string, location string) []Snippet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[tag] = true
	}

	var selected []Snippet
	for _, snippet := range r.snippets {
		if !snippet.Enabled || !wanted[snippet.Tag] {
			continue
		}
		if len(snippet.Locations) > 0 && !containsFold(snippet.Locations, location) {
			continue
		}
		selected = append(selected, snippet)
	}
	return selected
}

func containsFold(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if strings.EqualFold(candidate, needle) {
			return true
		}
	}
	return false
}
