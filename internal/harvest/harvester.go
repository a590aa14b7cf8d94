// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Factor harvesting: run strategies, dedup, serialize

package harvest

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/quantfold/rdagent-runner/internal/workspace"
)

// FactorsDocument is the serialized output schema: a single top-level
// factors key holding the ordered record list.
type FactorsDocument struct {
	Factors []FactorRecord `yaml:"factors" json:"factors"`
}

// Harvester runs every extraction strategy over a finished workspace and
// writes the deduplicated result set.
type Harvester struct {
	strategies []ExtractionStrategy
	log        *zap.Logger
}

// NewHarvester creates a harvester with the default strategy order:
// structured JSON first, heuristic source second. Order matters because
// deduplication keeps the first occurrence of a name.
func NewHarvester(log *zap.Logger) *Harvester {
	return &Harvester{
		strategies: []ExtractionStrategy{
			NewStructuredStrategy(log),
			NewSourceStrategy(log),
		},
		log: log,
	}
}

// NewHarvesterWithStrategies creates a harvester with explicit strategies.
func NewHarvesterWithStrategies(log *zap.Logger, strategies ...ExtractionStrategy) *Harvester {
	return &Harvester{strategies: strategies, log: log}
}

// Harvest scans the workspace root and, when anything was discovered,
// writes the factors document under it. Returns the document path and the
// deduplicated records; an empty path means no discovery, which callers
// must not treat as an error.
func (h *Harvester) Harvest(root string) (string, []FactorRecord, error) {
	var collected []FactorRecord
	for _, strategy := range h.strategies {
		records, err := strategy.Extract(root)
		if err != nil {
			h.log.Warn("extraction strategy failed",
				zap.String("strategy", strategy.Name()), zap.Error(err))
			continue
		}
		h.log.Debug("strategy finished",
			zap.String("strategy", strategy.Name()), zap.Int("candidates", len(records)))
		collected = append(collected, records...)
	}

	unique := dedupeByName(collected)
	if len(unique) == 0 {
		h.log.Warn("no factors discovered in workspace", zap.String("root", root))
		return "", nil, nil
	}

	doc := FactorsDocument{Factors: unique}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to serialize factors: %w", err)
	}

	outPath := filepath.Join(root, workspace.FactorsFileName)
	if err := os.WriteFile(outPath, raw, 0644); err != nil {
		return "", nil, fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	h.log.Info("wrote discovered factors",
		zap.Int("count", len(unique)), zap.String("path", outPath))
	return outPath, unique, nil
}

// dedupeByName keeps the first occurrence of each name, preserving
// insertion order. Records without a name are dropped.
func dedupeByName(records []FactorRecord) []FactorRecord {
	seen := make(map[string]bool, len(records))
	unique := make([]FactorRecord, 0, len(records))
	for _, record := range records {
		if record.Name == "" || seen[record.Name] {
			continue
		}
		seen[record.Name] = true
		unique = append(unique, record)
	}
	return unique
}
