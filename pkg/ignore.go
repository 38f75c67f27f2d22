package incremental

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// PatternFilter decides which walked entries are visited.
//
// Patterns are Go regular expressions matched against the '/'-separated
// relative path. Exclude patterns apply to files and directories; a
// directory is also tested with a trailing '/' so "build/" prunes the whole
// subtree. Include patterns apply to files only, so directories stay
// traversable. With no include patterns every file is included.
type PatternFilter struct {
	includes []*regexp.Regexp
	excludes []*regexp.Regexp
}

// NewPatternFilter compiles include and exclude patterns
func NewPatternFilter(includes, excludes []string) (*PatternFilter, error) {
	pf := &PatternFilter{}
	for _, p := range includes {
		if err := pf.AddInclude(p); err != nil {
			return nil, err
		}
	}
	for _, p := range excludes {
		if err := pf.AddExclude(p); err != nil {
			return nil, err
		}
	}
	return pf, nil
}

// LoadPatternFile reads patterns from a file. Blank lines and lines starting
// with '#' are skipped, lines starting with '+' are includes, every other
// line is an exclude. A missing file yields an empty filter.
func LoadPatternFile(path string) (*PatternFilter, error) {
	pf := &PatternFilter{}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pf, nil
		}
		return nil, fmt.Errorf("failed to open pattern file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "+") {
			err = pf.AddInclude(strings.TrimPrefix(line, "+"))
		} else {
			err = pf.AddExclude(line)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid pattern at line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading pattern file: %w", err)
	}

	return pf, nil
}

// AddInclude adds a new include pattern
func (pf *PatternFilter) AddInclude(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %s - %w", pattern, err)
	}
	pf.includes = append(pf.includes, re)
	return nil
}

// AddExclude adds a new exclude pattern
func (pf *PatternFilter) AddExclude(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %s - %w", pattern, err)
	}
	pf.excludes = append(pf.excludes, re)
	return nil
}

// Includes returns the include pattern sources
func (pf *PatternFilter) Includes() []string {
	return patternStrings(pf.includes)
}

// Excludes returns the exclude pattern sources
func (pf *PatternFilter) Excludes() []string {
	return patternStrings(pf.excludes)
}

// IsEmpty reports whether the filter allows everything
func (pf *PatternFilter) IsEmpty() bool {
	return pf == nil || (len(pf.includes) == 0 && len(pf.excludes) == 0)
}

// IsAllowed reports whether an entry with the given relative path passes the filter
func (pf *PatternFilter) IsAllowed(relativePath string, isDirectory bool) bool {
	if pf.IsEmpty() {
		return true
	}

	for _, re := range pf.excludes {
		if re.MatchString(relativePath) || (isDirectory && re.MatchString(relativePath+"/")) {
			return false
		}
	}

	if isDirectory || len(pf.includes) == 0 {
		return true
	}
	for _, re := range pf.includes {
		if re.MatchString(relativePath) {
			return true
		}
	}
	return false
}

// AsSpec adapts the filter to a walker predicate
func (pf *PatternFilter) AsSpec() Spec {
	if pf.IsEmpty() {
		return AllowAll
	}
	return func(details *FileVisitDetails) bool {
		return pf.IsAllowed(details.RelativePath.PathString(), details.IsDirectory)
	}
}

func patternStrings(patterns []*regexp.Regexp) []string {
	result := make([]string, 0, len(patterns))
	for _, re := range patterns {
		result = append(result, re.String())
	}
	return result
}
