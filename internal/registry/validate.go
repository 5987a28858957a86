package registry

import (
	"fmt"
	"os"
	"path/filepath"
)

// Validate checks the registry for consistency and returns one message per
// finding. An empty slice means the registry is valid.
//
// Checks:
//   - no duplicate query names
//   - every query file exists under root
//   - every declared smoke test file exists under root
//   - dependencies reference known queries
//   - nested queries with dependencies have each dependency's Dune ID assigned
func (r *Registry) Validate(root string) []string {
	var errs []string

	names := make(map[string]bool)
	for _, q := range r.Queries {
		if names[q.Name] {
			errs = append(errs, fmt.Sprintf("duplicate query name: %s", q.Name))
		}
		names[q.Name] = true
	}

	for _, q := range r.Queries {
		if q.File != "" {
			if _, err := os.Stat(filepath.Join(root, q.File)); err != nil {
				errs = append(errs, fmt.Sprintf("[%s] query file not found: %s", q.Name, q.File))
			}
		}

		if q.SmokeTest != "" {
			if _, err := os.Stat(filepath.Join(root, q.SmokeTest)); err != nil {
				errs = append(errs, fmt.Sprintf("[%s] smoke test not found: %s", q.Name, q.SmokeTest))
			}
		}

		for _, dep := range q.Dependencies {
			if !names[dep] {
				errs = append(errs, fmt.Sprintf("[%s] unknown dependency: %s", q.Name, dep))
			}
		}

		if q.Type == TypeNested && len(q.Dependencies) > 0 {
			for _, dep := range q.Dependencies {
				depEntry := r.Get(dep)
				if depEntry != nil && depEntry.DuneQueryID == 0 {
					errs = append(errs, fmt.Sprintf("[%s] dependency '%s' has no Dune query ID set", q.Name, dep))
				}
			}
		}
	}

	return errs
}
