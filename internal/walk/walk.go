// Package walk discovers local files under a directory for batch
// upload, grounded on the teacher's directory-scanning conventions
// (internal/config/paths.go) but built on filepath.WalkDir rather than
// an os.ReadDir loop, since the teacher never needed to recurse.
package walk

import (
	"io/fs"
	"path/filepath"

	"github.com/s3tool/s3tool/internal/s3err"
)

// FileRef is one discovered local file, with both its absolute path
// and its path relative to the walked root (used to derive the S3 key).
type FileRef struct {
	AbsPath string
	RelPath string
	Size    int64
}

// Files walks root and returns every regular file found, in
// lexical order (filepath.WalkDir's traversal order). Symlinks are
// not followed.
func Files(root string) ([]FileRef, error) {
	var refs []FileRef
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		refs = append(refs, FileRef{
			AbsPath: path,
			RelPath: filepath.ToSlash(rel),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, s3err.New(s3err.Usage, "walk directory "+root, err)
	}
	return refs, nil
}
