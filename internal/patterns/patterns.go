// Package patterns mines recurring conflict shapes from resolution history.
package patterns

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

// FullConfidenceAt is the frequency at which a pattern with a perfect
// success rate reaches confidence 1.
const FullConfidenceAt = 10

// FileGlob returns the glob a conflicted file is grouped under: all files
// with the same extension, or all files with the same name when there is none.
func FileGlob(file string) string {
	base := path.Base(filepath.ToSlash(file))
	if ext := path.Ext(base); ext != "" && ext != base {
		return "**/*" + ext
	}
	return "**/" + base
}

type group struct {
	kind      models.ConflictType
	glob      string
	frequency int
	successes int
	uses      map[models.ResolutionType]int
	order     []models.ResolutionType
}

// Mine groups records by conflict kind and file glob and returns one pattern
// per group, most frequent first.
func Mine(records []models.ResolutionRecord) []models.ConflictPattern {
	groups := make(map[string]*group)
	var keys []string

	for _, r := range records {
		if r.Conflict.FilePath == "" {
			continue
		}
		glob := FileGlob(r.Conflict.FilePath)
		key := string(r.Conflict.Type) + "\x00" + glob
		g, ok := groups[key]
		if !ok {
			g = &group{kind: r.Conflict.Type, glob: glob, uses: make(map[models.ResolutionType]int)}
			groups[key] = g
			keys = append(keys, key)
		}
		g.frequency++
		if r.Outcome.Success {
			g.successes++
		}
		if _, seen := g.uses[r.Resolution.Type]; !seen {
			g.order = append(g.order, r.Resolution.Type)
		}
		g.uses[r.Resolution.Type]++
	}

	out := make([]models.ConflictPattern, 0, len(keys))
	for _, key := range keys {
		out = append(out, groups[key].pattern())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	return out
}

func (g *group) pattern() models.ConflictPattern {
	typical := slices.Clone(g.order)
	sort.SliceStable(typical, func(i, j int) bool { return g.uses[typical[i]] > g.uses[typical[j]] })

	rate := float64(g.successes) / float64(g.frequency)
	return models.ConflictPattern{
		ID:                 models.NewID(),
		Name:               fmt.Sprintf("%s in %s", g.kind, g.glob),
		ConflictTypes:      []models.ConflictType{g.kind},
		FilePatterns:       []string{g.glob},
		TypicalResolutions: typical,
		Frequency:          g.frequency,
		SuccessRate:        rate,
		Confidence:         min(1, float64(g.frequency)/FullConfidenceAt) * rate,
	}
}

// Match returns the patterns that cover c's kind and file path, highest
// confidence first. Malformed globs never match.
func Match(patterns []models.ConflictPattern, c models.Conflict) []models.ConflictPattern {
	file := filepath.ToSlash(c.FilePath)
	var out []models.ConflictPattern
	for _, p := range patterns {
		if !slices.Contains(p.ConflictTypes, c.Type) {
			continue
		}
		for _, glob := range p.FilePatterns {
			if ok, err := doublestar.Match(glob, file); err == nil && ok {
				out = append(out, p)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}
