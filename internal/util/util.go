package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"parlift/internal/errors"
)

// WriteFileWithDirs creates parent directories (0755) and writes the file
// with perm. Failures surface as GenerationIO; partially written sibling
// artifacts are not rolled back.
func WriteFileWithDirs(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.KindGenerationIO, "create directory "+dir)
		}
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return errors.Wrap(err, errors.KindGenerationIO, "write "+path)
	}
	return nil
}

// WriteGenerated writes one generated artifact as UTF-8 text.
func WriteGenerated(fileName, destDir, contents string) error {
	return WriteFileWithDirs(filepath.Join(destDir, fileName), []byte(contents), 0o644)
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ScanSourceFiles expands paths into the list of host source files to
// compile: files are taken as given, directories are walked recursively for
// .java files with glob-based dir/file exclusion.
func ScanSourceFiles(paths []string, excludeDirs, excludeFiles []string) ([]string, error) {
	dirGlobs, err := compileGlobs(excludeDirs)
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(excludeFiles)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}
		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			base := filepath.Base(p)
			if fi.IsDir() {
				if matchAny(dirGlobs, base) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(base, ".java") || matchAny(fileGlobs, base) {
				return nil
			}
			out = append(out, p)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, value string) bool {
	for _, g := range globs {
		if g.Match(value) {
			return true
		}
	}
	return false
}
