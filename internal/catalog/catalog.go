// Package catalog holds the built-in model catalogue behind the
// `redcell models` command. The catalogue ships embedded in the binary;
// availability is decided at runtime from provider credentials in the
// environment.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed models.toml
var modelsTOML []byte

// Model is one catalogue entry.
type Model struct {
	Provider      string `toml:"provider" json:"provider"`
	ID            string `toml:"id" json:"id"`
	Name          string `toml:"name" json:"name"`
	ContextLength int    `toml:"context_length" json:"context_length,omitempty"`
	SupportsTools bool   `toml:"supports_tools" json:"supports_tools"`
	Description   string `toml:"description" json:"description,omitempty"`
}

// Entry pairs a catalogue model with its runtime availability.
type Entry struct {
	Model
	Available bool `json:"available"`
}

// Catalog is the decoded model catalogue.
type Catalog struct {
	models []Model
}

type catalogFile struct {
	Models []Model `toml:"models"`
}

// Load decodes the embedded catalogue.
func Load() (*Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(modelsTOML, &file); err != nil {
		return nil, fmt.Errorf("failed to decode model catalogue: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("model catalogue is empty")
	}
	return &Catalog{models: file.Models}, nil
}

// Models returns every catalogue entry in file order.
func (c *Catalog) Models() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// ByProvider returns the entries for one provider.
func (c *Catalog) ByProvider(provider string) []Model {
	provider = strings.ToLower(provider)
	var out []Model
	for _, m := range c.models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// Find resolves a user selection. Accepted forms are "provider:id", a
// bare model id, or a display name.
func (c *Catalog) Find(selection string) (Model, bool) {
	if provider, id, ok := strings.Cut(selection, ":"); ok {
		provider = strings.ToLower(provider)
		for _, m := range c.models {
			if m.Provider == provider && m.ID == id {
				return m, true
			}
		}
		return Model{}, false
	}
	for _, m := range c.models {
		if m.ID == selection || m.Name == selection {
			return m, true
		}
	}
	return Model{}, false
}

// Availability resolves every entry against the environment and
// returns them available-first, then by provider and id. Keyless
// providers count as available.
func (c *Catalog) Availability() []Entry {
	entries := make([]Entry, 0, len(c.models))
	keyed := make(map[string]bool)
	for _, m := range c.models {
		avail, seen := keyed[m.Provider]
		if !seen {
			avail = providerAvailable(m.Provider)
			keyed[m.Provider] = avail
		}
		entries = append(entries, Entry{Model: m, Available: avail})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Available != entries[j].Available {
			return entries[i].Available
		}
		if entries[i].Provider != entries[j].Provider {
			return entries[i].Provider < entries[j].Provider
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Keyless reports whether a provider needs no API key.
func Keyless(provider string) bool {
	return strings.ToLower(provider) == "ollama"
}

// EnvKey returns the environment variable carrying a provider's API
// key, or "" for keyless providers.
func EnvKey(provider string) string {
	if Keyless(provider) {
		return ""
	}
	return strings.ToUpper(provider) + "_API_KEY"
}

func providerAvailable(provider string) bool {
	if Keyless(provider) {
		return true
	}
	return os.Getenv(EnvKey(provider)) != ""
}
