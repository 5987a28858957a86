// Package registry manages the catalogue of named queries and their metadata.
//
// The registry file is the source of truth for query names, source files,
// smoke tests, dependency edges and assigned Dune query IDs. It is loaded
// once per invocation and treated as an immutable snapshot by the smoke
// pipeline; the only write path is SetQueryID, a maintenance operation.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Query types.
const (
	TypeBase       = "base"
	TypeNested     = "nested"
	TypeStandalone = "standalone"
)

// Query architectures.
const (
	ArchV2     = "v2"
	ArchLegacy = "legacy"
)

// Entry describes one named query in the catalogue.
type Entry struct {
	Name         string   `json:"name" yaml:"name"`
	File         string   `json:"file" yaml:"file"`
	Type         string   `json:"type" yaml:"type"`
	Architecture string   `json:"architecture" yaml:"architecture"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	SmokeTest    string   `json:"smoke_test,omitempty" yaml:"smoke_test,omitempty"`
	DuneQueryID  int64    `json:"dune_query_id" yaml:"dune_query_id"`
}

// Registry is an ordered catalogue of query entries. Declaration order is
// preserved; batch runs iterate in this order.
type Registry struct {
	Queries []Entry `json:"queries" yaml:"queries"`

	path string
}

// Load reads a registry file. The format is chosen by extension: .yaml/.yml
// is decoded as YAML, anything else as JSON.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", path, err)
	}

	reg := &Registry{path: path}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, reg)
	default:
		err = json.Unmarshal(data, reg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	return reg, nil
}

// Save writes the registry back to the file it was loaded from, in the same
// format, with a trailing newline.
func (r *Registry) Save() error {
	if r.path == "" {
		return fmt.Errorf("registry has no backing file")
	}
	return r.SaveTo(r.path)
}

// SaveTo writes the registry to the given path.
func (r *Registry) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r)
	default:
		data, err = json.MarshalIndent(r, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write registry %s: %w", path, err)
	}
	return nil
}

// Get returns the entry with the given name, or nil if absent.
func (r *Registry) Get(name string) *Entry {
	for i := range r.Queries {
		if r.Queries[i].Name == name {
			return &r.Queries[i]
		}
	}
	return nil
}

// SetQueryID assigns a Dune query ID to the named entry. Returns false if
// the entry does not exist. The caller is responsible for calling Save.
func (r *Registry) SetQueryID(name string, id int64) bool {
	entry := r.Get(name)
	if entry == nil {
		return false
	}
	entry.DuneQueryID = id
	return true
}

// QueryIDMap returns name -> assigned Dune query ID for every entry that has
// one. Entries without an assigned ID are excluded.
func (r *Registry) QueryIDMap() map[string]int64 {
	ids := make(map[string]int64)
	for _, q := range r.Queries {
		if q.DuneQueryID != 0 {
			ids[q.Name] = q.DuneQueryID
		}
	}
	return ids
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Architecture  string
	Type          string
	WithSmokeTest *bool // nil = both; true = only with; false = only without
}

// List returns entries matching the filter, in registry order.
func (r *Registry) List(f Filter) []Entry {
	var out []Entry
	for _, q := range r.Queries {
		if f.Architecture != "" && q.Architecture != f.Architecture {
			continue
		}
		if f.Type != "" && q.Type != f.Type {
			continue
		}
		if f.WithSmokeTest != nil && (q.SmokeTest != "") != *f.WithSmokeTest {
			continue
		}
		out = append(out, q)
	}
	return out
}
