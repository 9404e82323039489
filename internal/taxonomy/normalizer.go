package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/david/grant-extractor/internal/metrics"
)

// Normalizer canonicalizes raw category values against closed sets, using a
// synonym table per domain for values the model phrases differently.
type Normalizer struct {
	logger *zap.Logger
	tables map[Domain]map[string]string
}

// NewNormalizer returns a Normalizer seeded with the built-in synonym tables.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	tables := make(map[Domain]map[string]string)
	for d, t := range seedTables() {
		cp := make(map[string]string, len(t))
		for k, v := range t {
			cp[k] = v
		}
		tables[d] = cp
	}
	return &Normalizer{logger: logger, tables: tables}
}

// Normalize maps values onto set. Unknown values are dropped with a warning.
// The result holds no duplicates and keeps the order of first occurrence.
func (n *Normalizer) Normalize(values []string, set Set, domain Domain) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		canonical, ok := n.lookup(raw, set, domain)
		if !ok {
			if strings.TrimSpace(raw) != "" {
				n.drop(raw, set, domain)
			}
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

// NormalizeOne maps a single value, returning "" when it cannot be mapped.
func (n *Normalizer) NormalizeOne(value string, set Set, domain Domain) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	canonical, ok := n.lookup(value, set, domain)
	if !ok {
		n.drop(value, set, domain)
		return ""
	}
	return canonical
}

func (n *Normalizer) lookup(raw string, set Set, domain Domain) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if upper == "" {
		return "", false
	}
	if set.Contains(upper) {
		return upper, true
	}
	underscored := strings.NewReplacer(" ", "_", "-", "_").Replace(upper)
	if set.Contains(underscored) {
		return underscored, true
	}

	table := n.tables[domain]
	if mapped, ok := table[upper]; ok && set.Contains(mapped) {
		n.logger.Debug("mapped category value",
			zap.String("domain", string(domain)), zap.String("raw", raw), zap.String("canonical", mapped))
		return mapped, true
	}
	spaced := strings.ReplaceAll(upper, "_", " ")
	if mapped, ok := table[spaced]; ok && set.Contains(mapped) {
		return mapped, true
	}
	return "", false
}

func (n *Normalizer) drop(raw string, set Set, domain Domain) {
	metrics.ObserveTaxonomyDrop(string(domain))
	n.logger.Warn("dropping unmapped category value",
		zap.String("field", set.Name()), zap.String("domain", string(domain)), zap.String("value", raw))
}

// synonymFile is the on-disk shape of extra synonyms:
//
//	synonyms:
//	  sector:
//	    quantum computing: TECHNOLOGY
type synonymFile struct {
	Synonyms map[Domain]map[string]string `yaml:"synonyms"`
}

// LoadSynonyms merges extra synonym entries from a YAML file into the tables.
// Entries whose target is outside the domain's closed set are rejected.
func (n *Normalizer) LoadSynonyms(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read synonyms file: %w", err)
	}

	var doc synonymFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse synonyms file: %w", err)
	}

	added := 0
	for domain, entries := range doc.Synonyms {
		set, ok := setFor(domain)
		if !ok {
			return fmt.Errorf("unknown taxonomy domain %q", domain)
		}
		table := n.tables[domain]
		if table == nil {
			table = make(map[string]string)
			n.tables[domain] = table
		}
		for raw, target := range entries {
			target = strings.ToUpper(strings.TrimSpace(target))
			if !set.Contains(target) {
				return fmt.Errorf("synonym %q in domain %s maps to %q, which is not in %s", raw, domain, target, set.Name())
			}
			table[strings.ToUpper(strings.TrimSpace(raw))] = target
			added++
		}
	}

	n.logger.Info("loaded taxonomy synonyms", zap.String("path", path), zap.Int("entries", added))
	return nil
}
