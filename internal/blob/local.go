// Package blob stores uploaded audio files and hands out their public URLs.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/domain"
)

const sniffLen = 3072

// LocalStore keeps objects as flat files named by uuid under dir.
type LocalStore struct {
	dir        string
	publicPath string
}

func NewLocalStore(dir, publicPath string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, publicPath: publicPath}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// MediaType resolves the audio type of an upload from its declared type,
// sniffing head when nothing useful was declared.
func MediaType(declared string, head []byte) (string, error) {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil || mt == "" || mt == "application/octet-stream" {
		mt, _, _ = mime.ParseMediaType(mimetype.Detect(head).String())
	}
	if !strings.HasPrefix(mt, "audio/") {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedMedia, mt)
	}
	return mt, nil
}

// Store writes r to a new object. Callers bound the size of r.
func (s *LocalStore) Store(ctx context.Context, r io.Reader, fileName, contentType string) (domain.Locator, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	mt, err := MediaType(contentType, head)
	if err != nil {
		return "", err
	}

	loc := domain.Locator(uuid.NewString() + extension(fileName, mt))
	f, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(f.Name(), filepath.Join(s.dir, string(loc))); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("commit object: %w", err)
	}
	log.Info().Str("module", "blob").Str("locator", string(loc)).Str("type", mt).Int64("bytes", written).Msg("object stored")
	return loc, nil
}

func (s *LocalStore) PublicURL(loc domain.Locator) string {
	return path.Join(s.publicPath, string(loc))
}

func (s *LocalStore) Delete(_ context.Context, loc domain.Locator) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(string(loc))))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func extension(fileName, mediaType string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext != "" && len(ext) <= 6 && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	if m := mimetype.Lookup(mediaType); m != nil {
		return m.Extension()
	}
	return ""
}
