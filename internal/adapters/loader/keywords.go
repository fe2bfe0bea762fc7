package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// KeywordsFile is the default keyword list file name.
const KeywordsFile = "chem_keywords.txt"

// KeywordCandidates lists where the keyword file is looked for, in order:
// the configured path, next to the executable, then the working directory.
func KeywordCandidates(configured string) []string {
	var paths []string
	if configured != "" {
		paths = append(paths, configured)
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths, filepath.Join(dir, KeywordsFile), filepath.Join(dir, "..", KeywordsFile))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, "backend", KeywordsFile), filepath.Join(wd, KeywordsFile))
	}
	return paths
}

// LoadKeywords reads the first candidate file that exists, one keyword per
// line, and returns the keywords with the path used. When no candidate
// exists both are empty.
func LoadKeywords(candidates []string) ([]string, string, error) {
	for _, p := range candidates {
		kws, err := readKeywords(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, p, err
		}
		return kws, p, nil
	}
	return nil, "", nil
}

func readKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var kws []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}
		kws = append(kws, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return kws, nil
}
