// Package scanner discovers indexable files in a project tree.
//
// It walks the project root the way a version-control-aware tool would:
// skipping build and dependency directories outright, honoring the root
// and nested .gitignore files, and refusing to hand back anything that
// looks like a binary blob or a credential.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codexlab/codexcore/internal/gitignore"
)

// gitignoreCacheSize bounds how many per-directory matchers stay resident;
// a long-lived watch process should never grow this without bound.
const gitignoreCacheSize = 1000

// Scanner discovers indexable files in a project directory.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a Scanner with an empty gitignore matcher cache.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan discovers indexable files under opts.RootDir and streams them on the
// returned channel as a single background walk proceeds. The channel is
// closed once the walk finishes or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root directory: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	// Layer the project's .index-ignore patterns on top of the caller's
	// exclusions, on a copy so the caller's options stay untouched.
	effective := *opts
	if ignorePatterns := loadIndexIgnore(absRoot); len(ignorePatterns) > 0 {
		effective.ExcludePatterns = append(append([]string(nil), opts.ExcludePatterns...), ignorePatterns...)
	}

	// Discover submodules up front so an unreadable .gitmodules degrades to
	// a plain scan instead of failing it.
	var submodulePaths []string
	if effective.Submodules != nil && effective.Submodules.Enabled {
		submodules, discoverErr := DiscoverSubmodules(absRoot, *effective.Submodules)
		if discoverErr != nil {
			slog.Warn("failed to discover submodules", slog.String("error", discoverErr.Error()))
		} else {
			for _, sm := range submodules {
				if sm.Initialized {
					submodulePaths = append(submodulePaths, sm.Path)
				}
			}
		}
	}

	results := make(chan ScanResult, runtime.NumCPU()*10)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, &effective, maxFileSize, results)
		for _, smPath := range submodulePaths {
			s.scanSubmodule(ctx, absRoot, smPath, &effective, maxFileSize, results)
		}
	}()
	return results, nil
}

// loadIndexIgnore reads {root}/.index-ignore if present: one exclusion
// pattern per line, blank lines and #-comments skipped. A missing or
// unreadable file contributes nothing.
func loadIndexIgnore(absRoot string) []string {
	file, err := os.Open(filepath.Join(absRoot, IndexIgnoreFile))
	if err != nil {
		return nil
	}
	defer func() { _ = file.Close() }()

	var patterns []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// walk performs the directory traversal, emitting one ScanResult per
// indexable file and at most one ScanResult carrying a walk-level error.
func (s *Scanner) walk(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // unreadable entry, keep walking
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if s.shouldExcludeDir(relPath, opts) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if s.shouldExcludeFile(relPath, absRoot, opts) {
			return nil
		}
		if len(opts.IncludePatterns) > 0 && !matchesAnyPattern(relPath, opts.IncludePatterns) {
			return nil
		}

		fileInfo, err := statEntry(path, d)
		if err != nil {
			return nil
		}
		if fileInfo.Size() > maxFileSize {
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}

		language := DetectLanguage(relPath)
		select {
		case results <- ScanResult{File: &FileInfo{
			Path:        relPath,
			AbsPath:     path,
			Size:        fileInfo.Size(),
			ModTime:     fileInfo.ModTime(),
			Language:    language,
			ContentType: DetectContentType(language),
			IsGenerated: isGeneratedFile(path),
		}}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// shouldExcludeDir reports whether relPath (a directory, relative to the
// scan root) should be pruned from the walk entirely.
func (s *Scanner) shouldExcludeDir(relPath string, opts *ScanOptions) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// shouldExcludeFile reports whether relPath should be skipped: a sensitive
// credential pattern, a default lockfile/minified exclusion, a caller
// exclusion, or (when enabled) a gitignore match.
func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *ScanOptions) bool {
	base := filepath.Base(relPath)

	for _, pattern := range sensitiveFilePatterns {
		if matchFilePattern(base, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range defaultExcludeFiles {
		if matchFilePattern(base, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(base, relPath, pattern) {
			return true
		}
	}
	if opts.RespectGitignore && s.isGitignored(relPath, absRoot) {
		return true
	}
	return false
}

// matchDirPattern checks a directory's scan-root-relative path against one
// of the **/name/** or name/** exclusion globs above.
func matchDirPattern(relPath, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		for _, part := range strings.Split(relPath, string(filepath.Separator)) {
			if part == suffix {
				return true
			}
		}
		return false
	}

	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}

	return relPath == pattern || strings.HasPrefix(relPath, pattern+string(filepath.Separator))
}

// matchFilePattern checks a file's base name and scan-root-relative path
// against one of the exclusion globs above, supporting the small subset of
// glob syntax those lists actually use: **/, trailing/leading *, and a
// directory-scoped glob like "dir/prefix*.ext".
func matchFilePattern(baseName, relPath, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}

	if strings.Contains(pattern, string(filepath.Separator)) && strings.Contains(pattern, "*") && !strings.HasPrefix(pattern, "**/") {
		dir := filepath.Dir(pattern)
		filePattern := filepath.Base(pattern)
		if filepath.Dir(relPath) == dir {
			matched, err := filepath.Match(filePattern, baseName)
			return err == nil && matched
		}
		return false
	}

	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if strings.HasPrefix(suffix, "*.") {
			return strings.HasSuffix(baseName, strings.TrimPrefix(suffix, "*"))
		}
		parts := strings.Split(relPath, string(filepath.Separator))
		for i, part := range parts {
			if part == suffix || (i < len(parts)-1 && matchDirPattern(strings.Join(parts[:i+1], string(filepath.Separator)), pattern)) {
				return true
			}
		}
		return false
	}

	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
		middle := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(baseName), strings.ToLower(middle))
	}

	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(pattern, ".") {
		return strings.HasPrefix(baseName, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(baseName, strings.TrimPrefix(pattern, "*"))
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(baseName, strings.TrimSuffix(pattern, "*"))
	}

	return baseName == pattern
}

// statEntry returns file info for a walk entry, following the link target
// for symlinks (only reachable when FollowSymlinks is on).
func statEntry(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		return os.Stat(path)
	}
	return d.Info()
}

// matchesAnyPattern reports whether relPath matches at least one of the
// include patterns, by base name or full relative path.
func matchesAnyPattern(relPath string, patterns []string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
		if matched, err := filepath.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

// isGeneratedFile sniffs the first 1KB of a file for the conventional
// machine-generated markers.
func isGeneratedFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	content := string(buf[:n])

	markers := []string{
		"// Code generated",
		"// DO NOT EDIT",
		"/* DO NOT EDIT",
		"# Generated by",
		"<!-- AUTO-GENERATED -->",
		"// Generated by",
		"/* Generated by",
	}
	for _, marker := range markers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// scanSubmodule walks one initialized submodule's tree, emitting files with
// their path relative to the parent project root. Exclusion and include
// patterns are evaluated against the submodule-relative path, so a rule
// like "*.min.js" behaves identically inside and outside a submodule.
func (s *Scanner) scanSubmodule(ctx context.Context, absRoot, submodulePath string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	submoduleAbsPath := filepath.Join(absRoot, submodulePath)

	_ = filepath.WalkDir(submoduleAbsPath, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			return nil
		}

		relFromSubmodule, err := filepath.Rel(submoduleAbsPath, path)
		if err != nil || relFromSubmodule == "." {
			return nil
		}
		relPath := filepath.Join(submodulePath, relFromSubmodule)

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if s.shouldExcludeDir(relFromSubmodule, opts) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if s.shouldExcludeFile(relFromSubmodule, submoduleAbsPath, opts) {
			return nil
		}
		if len(opts.IncludePatterns) > 0 && !matchesAnyPattern(relFromSubmodule, opts.IncludePatterns) {
			return nil
		}

		fileInfo, err := statEntry(path, d)
		if err != nil {
			return nil
		}
		if fileInfo.Size() > maxFileSize {
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}

		language := DetectLanguage(relFromSubmodule)
		select {
		case results <- ScanResult{File: &FileInfo{
			Path:        relPath,
			AbsPath:     path,
			Size:        fileInfo.Size(),
			ModTime:     fileInfo.ModTime(),
			Language:    language,
			ContentType: DetectContentType(language),
			IsGenerated: isGeneratedFile(path),
		}}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// isBinaryFile sniffs the first 512 bytes of a file for a null byte, the
// same heuristic git itself uses to decide whether a diff is binary.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

// isGitignored walks from the root down to relPath's directory, consulting
// the .gitignore in each ancestor directory in order, and reports true as
// soon as any one of them matches. A negation in a deeper .gitignore does
// not re-include a path that an ancestor's .gitignore ignores.
func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	if rootMatcher := s.getGitignoreMatcher(absRoot, ""); rootMatcher != nil && rootMatcher.Match(relPath, false) {
		return true
	}

	currentDir := absRoot
	var currentBase string
	for _, part := range strings.Split(filepath.Dir(relPath), string(filepath.Separator)) {
		if part == "." {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = filepath.Join(currentBase, part)
		}
		if matcher := s.getGitignoreMatcher(currentDir, currentBase); matcher != nil && matcher.Match(relPath, false) {
			return true
		}
	}
	return false
}

// getGitignoreMatcher returns the cached matcher for dir's .gitignore,
// parsing and caching it on first use. A directory with no .gitignore
// caches nothing and returns nil every time.
func (s *Scanner) getGitignoreMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	matcher, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		return nil
	}

	matcher = gitignore.New()
	if err := matcher.AddFromFile(gitignorePath, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, matcher)
	s.cacheMu.Unlock()
	return matcher
}

// InvalidateGitignoreCache clears the gitignore matcher cache. Call this
// when a watched .gitignore changes so the next scan re-parses it.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

// defaultExcludeDirs are pruned from every walk regardless of gitignore
// state. .codex is the index's own on-disk store (internal/paths.ForProject)
// and must never be walked back into itself.
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/.codex/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
	"**/.aws/**",
	"**/.gcp/**",
	"**/.azure/**",
	"**/.ssh/**",
}

// defaultExcludeFiles are skipped even without a gitignore rule: lockfiles
// and minified bundles that would otherwise pollute the index with noise.
var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
	"**/Cargo.lock",
	"**/*.log",
}

// sensitiveFilePatterns are never indexed, gitignore or not: these are the
// files most likely to hold a credential.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
