// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Rewrites hard-coded qlib.init paths in agent-generated code

package patcher

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/workspace"
)

// initCallPattern matches the opening of a qlib.init call through its
// provider_uri argument. The argument may be a quoted string or a bare
// identifier; the trailing comma anchors the end of the argument.
var initCallPattern = regexp.MustCompile(
	`qlib\.init\s*\(\s*provider_uri\s*=\s*("[^"]*"|'[^']*'|[A-Za-z_][A-Za-z0-9_.]*)\s*,`)

// Patcher rewrites generated Python files so that qlib.init reads its data
// path from QLIB_DATA_PATH at the file's own execution time, with DataPath
// as the default when the variable is absent.
type Patcher struct {
	DataPath string
	log      *zap.Logger
}

// New creates a patcher that falls back to dataPath.
func New(dataPath string, log *zap.Logger) *Patcher {
	return &Patcher{DataPath: dataPath, log: log}
}

// PatchFile patches a single file in place. Returns true if the file was
// modified. When no pattern matches, the file is left byte-identical and
// not re-saved, which makes repeated runs idempotent.
func (p *Patcher) PatchFile(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return false, fmt.Errorf("cannot decode %s as UTF-8", path)
	}

	content := string(raw)
	replacement := `qlib.init(provider_uri=os.environ.get("QLIB_DATA_PATH", "` + p.DataPath + `"),`
	patched := initCallPattern.ReplaceAllString(content, replacement)
	if patched == content {
		return false, nil
	}

	patched = ensureOSImport(patched)

	info, err := os.Stat(path)
	mode := os.FileMode(0644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, []byte(patched), mode); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	p.log.Info("patched qlib.init call", zap.String("file", path))
	return true, nil
}

// PatchTree patches every .py file under root and returns the number of
// modified files. The pipeline's own helper script is skipped; unreadable
// or undecodable files are logged and skipped, never fatal.
func (p *Patcher) PatchTree(root string) (int, error) {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		p.log.Warn("workspace directory not found", zap.String("root", root))
		return 0, nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), "**/*.py")
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	count := 0
	for _, rel := range matches {
		if filepath.Base(rel) == workspace.PrepScriptName {
			continue
		}
		modified, err := p.PatchFile(filepath.Join(root, rel))
		if err != nil {
			p.log.Warn("skipping file", zap.String("file", rel), zap.Error(err))
			continue
		}
		if modified {
			count++
		}
	}

	p.log.Info("workspace patch pass complete", zap.Int("patched", count), zap.String("root", root))
	return count, nil
}

// ensureOSImport inserts "import os" once, after any leading
// from __future__ lines, so the injected environment lookup resolves.
func ensureOSImport(content string) string {
	if strings.Contains(content, "import os") {
		return content
	}

	lines := strings.Split(content, "\n")
	insertAt := 0
	for i, line := range lines {
		if strings.HasPrefix(line, "from __future__") {
			insertAt = i + 1
		}
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insertAt]...)
	out = append(out, "import os")
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n")
}
