// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Factor record schema and extraction strategy interface

package harvest

import "fmt"

// DefaultDescription is used when no description could be extracted.
const DefaultDescription = "Auto-discovered by RD-Agent"

// FactorRecord is one normalized factor harvested from the workspace.
// Field order matches the output document schema.
type FactorRecord struct {
	Name        string   `yaml:"name" json:"name"`
	Expression  string   `yaml:"expression" json:"expression"`
	ICMean      *float64 `yaml:"ic_mean" json:"ic_mean"`
	ICIR        *float64 `yaml:"ic_ir" json:"ic_ir"`
	Description string   `yaml:"description" json:"description"`
	Enabled     bool     `yaml:"enabled" json:"enabled"`
}

// ExtractionStrategy scans a workspace tree and produces candidate factor
// records. Strategies are independent; the harvester runs them in order and
// deduplicates afterwards, so new heuristics can be added without touching
// dedup or serialization logic.
type ExtractionStrategy interface {
	Name() string
	Extract(root string) ([]FactorRecord, error)
}

// stringify renders any decoded JSON scalar as a string.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
