package smoke

import (
	"fmt"
	"regexp"

	"github.com/querylab/dune-smoke/internal/logging"
	"github.com/querylab/dune-smoke/internal/registry"
)

// placeholderPattern matches cross-query references of the form
// query_<NAME>. NAME is either the name of a dependency declared by the
// entry under test, or the legacy token BASE_QUERY_ID.
var placeholderPattern = regexp.MustCompile(`query_<([A-Za-z0-9_]+)>`)

// legacyPlaceholder is the historical token that named no dependency at all.
// It resolves to the entry's first base-typed dependency.
const legacyPlaceholder = "BASE_QUERY_ID"

// ResolveQueryIDs rewrites query_<NAME> placeholders in the SQL into
// query_<id> using the Dune IDs assigned in the registry. Resolution is a
// best-effort rewrite: a placeholder that names an unknown dependency or one
// without an assigned ID is left untouched and will fail at the Dune layer,
// but the discrepancy is logged loudly here.
func ResolveQueryIDs(sql string, entry *registry.Entry, reg *registry.Registry) string {
	if !placeholderPattern.MatchString(sql) {
		return sql
	}

	log := logging.Component("resolver").With("query", entry.Name)
	ids := reg.QueryIDMap()

	return placeholderPattern.ReplaceAllStringFunc(sql, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		target := name
		if name == legacyPlaceholder {
			target = legacyTarget(entry, reg)
			if target == "" {
				log.Warn("placeholder has no dependency to resolve against", "placeholder", match)
				return match
			}
		} else if !dependsOn(entry, name) {
			log.Warn("placeholder names a query not declared as a dependency",
				"placeholder", match, "name", name)
			return match
		}

		id, ok := ids[target]
		if !ok {
			log.Warn("dependency has no Dune query ID assigned, leaving placeholder",
				"placeholder", match, "dependency", target)
			return match
		}
		return fmt.Sprintf("query_%d", id)
	})
}

// legacyTarget picks the dependency the legacy token stands for: the first
// base-typed dependency, falling back to the first dependency.
func legacyTarget(entry *registry.Entry, reg *registry.Registry) string {
	for _, dep := range entry.Dependencies {
		if d := reg.Get(dep); d != nil && d.Type == registry.TypeBase {
			return dep
		}
	}
	if len(entry.Dependencies) > 0 {
		return entry.Dependencies[0]
	}
	return ""
}

func dependsOn(entry *registry.Entry, name string) bool {
	for _, dep := range entry.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}
