package repository

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	domrepo "BrentCast/internal/domain/repository"
)

// FSArtifactSource reads artifacts from a filesystem rooted at a directory.
type FSArtifactSource struct {
	fsys fs.FS
	root string
}

// NewDirArtifactSource serves artifacts from dir on local disk.
func NewDirArtifactSource(dir string) *FSArtifactSource {
	return &FSArtifactSource{fsys: os.DirFS(dir), root: dir}
}

// NewFSArtifactSource serves artifacts from any fs.FS; root is only used in descriptions.
func NewFSArtifactSource(fsys fs.FS, root string) *FSArtifactSource {
	return &FSArtifactSource{fsys: fsys, root: root}
}

func (s *FSArtifactSource) ReadArtifact(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("artifact name is empty")
	}
	clean := path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "/"))
	b, err := fs.ReadFile(s.fsys, clean)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", s.Describe(name), err)
	}
	return b, nil
}

func (s *FSArtifactSource) Describe(name string) string {
	if s.root == "" {
		return name
	}
	return filepath.Join(s.root, name)
}

var _ domrepo.ArtifactSource = (*FSArtifactSource)(nil)
