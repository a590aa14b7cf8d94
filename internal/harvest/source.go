// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Heuristic extraction from generated Python sources

package harvest

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/workspace"
)

var (
	// exprMarker detects qlib-style expressions: field references combined
	// with an operator, or one of the named aggregation calls.
	exprMarker = regexp.MustCompile(`\$\w+\s*[/*+\-]|Ref\s*\(|Mean\s*\(|Std\s*\(|Corr\s*\(`)

	// assignExpr captures expr/expression/formula string assignments.
	assignExpr = regexp.MustCompile(`(?:expr|expression|formula)\s*=\s*['"](.+?)['"]`)

	// assignName captures name/factor_name string assignments.
	assignName = regexp.MustCompile(`(?:name|factor_name)\s*=\s*['"](.+?)['"]`)

	// docstring captures the first triple-quoted block.
	docstring = regexp.MustCompile(`(?s)"""(.+?)"""`)
)

// SourceStrategy scans Python sources for qlib expression markers and
// derives candidate factor records from file names, assignments, and
// docstrings. Quality fields are always null for this strategy.
type SourceStrategy struct {
	log *zap.Logger
}

// NewSourceStrategy creates the source-scanning strategy.
func NewSourceStrategy(log *zap.Logger) *SourceStrategy {
	return &SourceStrategy{log: log}
}

// Name identifies the strategy in logs.
func (s *SourceStrategy) Name() string { return "heuristic-source" }

// Extract scans every *.py file under root.
func (s *SourceStrategy) Extract(root string) ([]FactorRecord, error) {
	matches, err := doublestar.Glob(os.DirFS(root), "**/*.py")
	if err != nil {
		return nil, err
	}

	var records []FactorRecord
	for _, rel := range matches {
		if filepath.Base(rel) == workspace.PrepScriptName {
			continue
		}
		path := filepath.Join(root, rel)
		raw, err := os.ReadFile(path)
		if err != nil {
			s.log.Debug("skipping unreadable file", zap.String("file", path), zap.Error(err))
			continue
		}

		source := string(raw)
		if !exprMarker.MatchString(source) {
			continue
		}
		records = append(records, parseSourceFactor(path, source))
	}
	return records, nil
}

// parseSourceFactor derives a candidate record from one matching file.
func parseSourceFactor(path, source string) FactorRecord {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if m := assignName.FindStringSubmatch(source); m != nil {
		name = m[1]
	}

	expression := ""
	if m := assignExpr.FindStringSubmatch(source); m != nil {
		expression = m[1]
	}

	description := DefaultDescription
	if m := docstring.FindStringSubmatch(source); m != nil {
		firstLine := strings.SplitN(strings.TrimSpace(m[1]), "\n", 2)[0]
		if firstLine != "" {
			description = firstLine
		}
	}

	return FactorRecord{
		Name:        name,
		Expression:  expression,
		Description: description,
		Enabled:     true,
	}
}
