package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/roach88/recsync/internal/record"
)

// Write stores rec under dir at <entity_type>/<bundle>/<uuid>.yml and sets
// its SourcePath. Options already present in an existing file are kept
// unless rec sets them. File records get their asset copied next to them.
func (e *Engine) Write(ctx context.Context, dir string, rec *record.SerializedRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.FromSlash(rec.RelativePath()))

	var assetSrc string
	if rec.AssetName() != "" {
		src, err := e.liveAssetPath(rec)
		if err != nil {
			return "", err
		}
		assetSrc = src
	}

	if existing, err := record.Load(e.fs, path); err == nil {
		for id, v := range existing.Options {
			if _, set := rec.Options[id]; !set {
				rec.SetOption(id, v)
			}
		}
	}

	data, err := rec.Marshal()
	if err != nil {
		return "", &record.Error{Code: record.ErrCodeInvalidInput, Message: "encode record", Identity: rec.Identity, Err: err}
	}
	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", record.WrapIO(filepath.Dir(path), "create directory", err)
	}
	if err := afero.WriteFile(e.fs, path, data, 0o644); err != nil {
		return "", record.WrapIO(path, "write record file", err)
	}
	rec.SourcePath = path

	if assetSrc != "" {
		dst := filepath.Join(filepath.Dir(path), rec.AssetName())
		if err := copyFile(e.fs, assetSrc, dst); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return "", record.WrapIO(assetSrc, "copy asset", err)
			}
			e.logger.Warn("asset not found", "uuid", rec.Identity, "path", assetSrc)
		}
	}

	e.cache.Invalidate(dir)
	e.logger.Debug("wrote record", "uuid", rec.Identity, "path", path)
	return path, nil
}

// liveAssetPath returns where the asset of a file record lives in the files
// directory: the uri with its scheme removed. A uri that would leave the
// files directory is INVALID_INPUT.
func (e *Engine) liveAssetPath(rec *record.SerializedRecord) (string, error) {
	uri, _ := rec.Default["uri"][0]["value"].(string)
	rel := uri
	if i := strings.Index(rel, "://"); i >= 0 {
		rel = rel[i+3:]
	}
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		return "", &record.Error{
			Code:     record.ErrCodeInvalidInput,
			Message:  fmt.Sprintf("asset uri %q points outside the files directory", uri),
			Identity: rec.Identity,
			Path:     rec.SourcePath,
		}
	}
	return filepath.Join(e.filesDir, rel), nil
}

// copyFile copies src to dst, creating dst's directory.
// A missing src returns an error matching os.ErrNotExist.
func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
