package parser

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/whharris917/atlas-sub000/internal/pyast"
	"github.com/whharris917/atlas-sub000/internal/shared/observability"
)

// Discovery walks the configured roots collecting Python sources, minus
// the excluded directory and file patterns.
type Discovery struct {
	roots        []string
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func NewDiscovery(roots, excludeDirs, excludeFiles []string) (*Discovery, error) {
	d := &Discovery{roots: roots}
	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile exclude dir pattern %q: %w", pattern, err)
		}
		d.excludeDirs = append(d.excludeDirs, g)
	}
	for _, pattern := range excludeFiles {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile exclude file pattern %q: %w", pattern, err)
		}
		d.excludeFiles = append(d.excludeFiles, g)
	}
	return d, nil
}

// Files returns every discovered source path paired with its root.
func (d *Discovery) Files() (map[string]string, error) {
	found := make(map[string]string)
	for _, root := range d.roots {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			base := filepath.Base(path)
			if entry.IsDir() {
				if path != root && (strings.HasPrefix(base, ".") || d.matchAny(d.excludeDirs, base, path)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(base, ".py") || d.matchAny(d.excludeFiles, base, path) {
				return nil
			}
			found[path] = root
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %q: %w", root, err)
		}
	}
	return found, nil
}

func (d *Discovery) matchAny(globs []glob.Glob, base, path string) bool {
	for _, g := range globs {
		if g.Match(base) || g.Match(path) {
			return true
		}
	}
	return false
}

// ModuleName derives the dotted module name for a source path under its
// root: pkg/sub/mod.py becomes pkg.sub.mod, and a package __init__.py
// takes its package's name.
func ModuleName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, ".py")
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) > 0 && parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ".")
}

// Load discovers and parses every source file. A file that fails to read
// or parse is logged, counted, and skipped; the run continues with the
// rest, and a skipped file surfaces downstream as an empty report.
func Load(disc *Discovery, p *Parser, log *slog.Logger) ([]*pyast.Module, error) {
	if log == nil {
		log = slog.Default()
	}

	files, err := disc.Files()
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	modules := make([]*pyast.Module, 0, len(paths))
	for _, path := range paths {
		name := ModuleName(files[path], path)
		if name == "" {
			continue
		}
		mod, err := p.ParseFile(name, path)
		if err != nil {
			observability.ParseFailures.Inc()
			log.Warn("skipping unparseable file", "path", path, "error", err)
			continue
		}
		observability.FilesParsed.Inc()
		modules = append(modules, mod)
	}

	if len(modules) == 0 && len(paths) > 0 {
		return nil, fmt.Errorf("no file out of %d parsed successfully", len(paths))
	}
	return modules, nil
}
