// Package archive packages a collection of serialized records, with their
// co-located assets, into a portable gzip-compressed tarball and unpacks
// such tarballs into a source directory.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/roach88/recsync/internal/collection"
	"github.com/roach88/recsync/internal/record"
)

// modTime is stamped on every entry so the same collection always produces
// the same archive bytes.
var modTime = time.Unix(0, 0).UTC()

// Write packages every record of coll into w. Records are stored at
// <entity_type>/<bundle>/<uuid>.yml; an asset is stored next to its record
// and read from the directory of the record's SourcePath. A missing asset
// is skipped.
func Write(w io.Writer, fs afero.Fs, coll *collection.Collection) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	for _, rec := range coll.Records() {
		data, err := rec.Marshal()
		if err != nil {
			return err
		}
		name := rec.RelativePath()
		if err := writeEntry(tw, name, data); err != nil {
			return record.WrapIO(name, "write archive entry", err)
		}

		asset := rec.AssetName()
		if asset == "" || rec.SourcePath == "" {
			continue
		}
		src := filepath.Join(filepath.Dir(rec.SourcePath), asset)
		content, err := afero.ReadFile(fs, src)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return record.WrapIO(src, "read asset", err)
		}
		assetName := path.Join(path.Dir(name), asset)
		if err := writeEntry(tw, assetName, content); err != nil {
			return record.WrapIO(assetName, "write archive entry", err)
		}
	}

	if err := tw.Close(); err != nil {
		return record.WrapIO("", "close archive", err)
	}
	if err := gw.Close(); err != nil {
		return record.WrapIO("", "close archive", err)
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, data []byte) error {
	h := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(h); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// Extract unpacks a tarball written by Write into dir and returns the paths
// of the files written, in archive order. Entries that would escape dir,
// absolute names and links are rejected with an INVALID_INPUT error.
func Extract(r io.Reader, fs afero.Fs, dir string) ([]string, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, &record.Error{Code: record.ErrCodeInvalidInput, Message: "archive is not gzip-compressed", Err: err}
	}
	defer gr.Close()
	tr := tar.NewReader(gr)

	var written []string
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, &record.Error{Code: record.ErrCodeInvalidInput, Message: "malformed archive", Err: err}
		}

		switch h.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeReg:
		default:
			return written, &record.Error{
				Code:    record.ErrCodeInvalidInput,
				Message: fmt.Sprintf("unsupported archive entry type %q", h.Typeflag),
				Path:    h.Name,
			}
		}

		rel, err := safeRelative(h.Name)
		if err != nil {
			return written, &record.Error{Code: record.ErrCodeInvalidInput, Message: "unsafe archive entry", Path: h.Name, Err: err}
		}
		dst := filepath.Join(dir, rel)
		if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return written, record.WrapIO(dst, "create directory", err)
		}
		f, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return written, record.WrapIO(dst, "create file", err)
		}
		if _, err := io.CopyN(f, tr, h.Size); err != nil {
			f.Close()
			return written, record.WrapIO(dst, "write file", err)
		}
		if err := f.Close(); err != nil {
			return written, record.WrapIO(dst, "close file", err)
		}
		written = append(written, dst)
	}
}

// safeRelative returns name as an OS path relative to the extraction root,
// refusing anything that could land outside it.
func safeRelative(name string) (string, error) {
	if name == "" || path.IsAbs(name) || strings.HasPrefix(name, "\\") {
		return "", fmt.Errorf("absolute or empty path")
	}
	clean := path.Clean(name)
	if slices.Contains(strings.Split(clean, "/"), "..") {
		return "", fmt.Errorf("path escapes extraction root")
	}
	return filepath.FromSlash(clean), nil
}
