package index

import (
	"context"

	"github.com/codexlab/codexcore/internal/config"
	"github.com/codexlab/codexcore/internal/scanner"
)

// WalkedFile is a single file discovered by a FileSource.
type WalkedFile struct {
	Path    string // relative to project root
	AbsPath string
	Err     error
}

// FileSource enumerates the files a build should consider, decoupling the
// builder from any particular walking strategy so it can be driven by fakes
// in tests.
type FileSource interface {
	Walk(ctx context.Context, root string) (<-chan WalkedFile, error)
}

// ScannerSource adapts the gitignore-aware project scanner to FileSource.
type ScannerSource struct {
	scanner    *scanner.Scanner
	submodules *config.SubmoduleConfig
}

// NewScannerSource builds a FileSource backed by a fresh project scanner.
func NewScannerSource() (*ScannerSource, error) {
	s, err := scanner.New()
	if err != nil {
		return nil, err
	}
	return &ScannerSource{scanner: s}, nil
}

// WithSubmodules enables git submodule scanning per cfg on subsequent walks.
func (s *ScannerSource) WithSubmodules(cfg *config.SubmoduleConfig) *ScannerSource {
	s.submodules = cfg
	return s
}

var _ FileSource = (*ScannerSource)(nil)

func (s *ScannerSource) Walk(ctx context.Context, root string) (<-chan WalkedFile, error) {
	results, err := s.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          root,
		RespectGitignore: true,
		Submodules:       s.submodules,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan WalkedFile, 16)
	go func() {
		defer close(out)
		for r := range results {
			if r.Error != nil {
				out <- WalkedFile{Err: r.Error}
				continue
			}
			out <- WalkedFile{Path: r.File.Path, AbsPath: r.File.AbsPath}
		}
	}()
	return out, nil
}
