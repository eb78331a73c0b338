package scanner

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codexlab/codexcore/internal/config"
)

// SubmoduleInfo describes one git submodule discovered under a project.
type SubmoduleInfo struct {
	// Name is the submodule name from the [submodule "name"] section.
	Name string
	// Path is the submodule's path relative to the parent repository root.
	Path string
	// URL is the submodule's remote URL.
	URL string
	// Branch is the tracked branch, if one is configured.
	Branch string
	// CommitHash is the currently checked-out commit, when resolvable.
	CommitHash string
	// Initialized reports whether the submodule directory has content.
	Initialized bool
}

// DiscoverSubmodules finds the submodules configured for a project,
// recursing into nested submodules when cfg.Recursive is set. A project
// with no .gitmodules yields nil.
func DiscoverSubmodules(rootPath string, cfg config.SubmoduleConfig) ([]SubmoduleInfo, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	visited := make(map[string]bool)
	return discoverSubmodules(rootPath, rootPath, "", cfg, visited)
}

func discoverSubmodules(rootPath, currentPath, pathPrefix string, cfg config.SubmoduleConfig, visited map[string]bool) ([]SubmoduleInfo, error) {
	absPath, err := filepath.Abs(currentPath)
	if err != nil {
		return nil, err
	}
	if visited[absPath] {
		return nil, nil
	}
	visited[absPath] = true

	content, err := os.ReadFile(filepath.Join(currentPath, ".gitmodules"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read .gitmodules: %w", err)
	}

	parsed, err := ParseGitmodules(content)
	if err != nil {
		return nil, err
	}

	var result []SubmoduleInfo
	for _, sm := range parsed {
		fullPath := sm.Path
		if pathPrefix != "" {
			fullPath = filepath.Join(pathPrefix, sm.Path)
		}
		if !matchesSubmodulePatterns(sm.Name, fullPath, cfg.Include, cfg.Exclude) {
			continue
		}

		submoduleAbsPath := filepath.Join(currentPath, sm.Path)
		sm.Initialized = submoduleHasContent(submoduleAbsPath)
		if sm.Initialized {
			if hash, hashErr := submoduleCommitHash(rootPath, submoduleAbsPath); hashErr == nil {
				sm.CommitHash = hash
			}
		}
		sm.Path = fullPath
		result = append(result, sm)

		if cfg.Recursive && sm.Initialized {
			nested, nestedErr := discoverSubmodules(rootPath, submoduleAbsPath, fullPath, cfg, visited)
			if nestedErr == nil {
				result = append(result, nested...)
			}
		}
	}
	return result, nil
}

// ParseGitmodules parses .gitmodules content into SubmoduleInfo entries.
// Entries without a path are dropped.
func ParseGitmodules(content []byte) ([]SubmoduleInfo, error) {
	var submodules []SubmoduleInfo
	var current *SubmoduleInfo

	flush := func() {
		if current != nil && current.Path != "" {
			submodules = append(submodules, *current)
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[submodule") {
			flush()
			current = &SubmoduleInfo{Name: quotedSectionName(line)}
			continue
		}
		if current == nil {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "path":
			current.Path = strings.TrimSpace(value)
		case "url":
			current.URL = strings.TrimSpace(value)
		case "branch":
			current.Branch = strings.TrimSpace(value)
		}
	}
	flush()

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan .gitmodules: %w", err)
	}
	return submodules, nil
}

// quotedSectionName extracts name from a [submodule "name"] header.
func quotedSectionName(line string) string {
	start := strings.Index(line, "\"")
	end := strings.LastIndex(line, "\"")
	if start == -1 || end <= start {
		return ""
	}
	return line[start+1 : end]
}

// submoduleHasContent reports whether the directory holds anything beyond
// its .git link, i.e. whether the submodule has been initialized.
func submoduleHasContent(submodulePath string) bool {
	info, err := os.Stat(submodulePath)
	if err != nil || !info.IsDir() {
		return false
	}
	entries, err := os.ReadDir(submodulePath)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.Name() != ".git" {
			return true
		}
	}
	return false
}

// submoduleCommitHash resolves the submodule's checked-out commit from its
// gitdir HEAD, trying the .git file's gitdir pointer first and falling back
// to the parent's .git/modules layout.
func submoduleCommitHash(rootPath, submodulePath string) (string, error) {
	gitFileContent, err := os.ReadFile(filepath.Join(submodulePath, ".git"))
	if err != nil {
		relPath, relErr := filepath.Rel(rootPath, submodulePath)
		if relErr != nil {
			return "", fmt.Errorf("resolve submodule path: %w", relErr)
		}
		return readHEAD(filepath.Join(rootPath, ".git", "modules", relPath, "HEAD"))
	}

	gitdir := strings.TrimSpace(string(gitFileContent))
	gitdir, ok := strings.CutPrefix(gitdir, "gitdir:")
	if !ok {
		return "", fmt.Errorf("invalid .git file format")
	}
	gitdir = strings.TrimSpace(gitdir)

	headPath := filepath.Join(gitdir, "HEAD")
	if !filepath.IsAbs(gitdir) {
		headPath = filepath.Join(submodulePath, gitdir, "HEAD")
	}
	return readHEAD(headPath)
}

func readHEAD(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	hash := strings.TrimSpace(string(content))
	if strings.HasPrefix(hash, "ref:") {
		return "", fmt.Errorf("HEAD is a symbolic ref, not a commit hash")
	}
	return hash, nil
}

// matchesSubmodulePatterns applies the include/exclude globs from
// SubmoduleConfig to a submodule's name and root-relative path. Exclusion
// wins; an empty include list admits everything not excluded.
func matchesSubmodulePatterns(name, path string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if matchSubmodulePattern(name, pattern) || matchSubmodulePattern(path, pattern) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if matchSubmodulePattern(name, pattern) || matchSubmodulePattern(path, pattern) {
			return true
		}
	}
	return false
}

// matchSubmodulePattern supports the subset of glob syntax submodule
// configs actually use: exact matches, prefix/*, */suffix, and *contains*.
func matchSubmodulePattern(s, pattern string) bool {
	if s == pattern {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(s, prefix+"/") || s == prefix {
			return true
		}
	}
	if suffix, ok := strings.CutPrefix(pattern, "*/"); ok {
		if strings.HasSuffix(s, "/"+suffix) || s == suffix {
			return true
		}
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1 {
		middle := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		if strings.Contains(s, middle) {
			return true
		}
	}
	return false
}
