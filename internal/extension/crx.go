package extension

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ysmood/gson"
	"go.uber.org/zap"
)

var (
	// ErrNoZipPayload is returned when an archive carries no ZIP local file header
	ErrNoZipPayload = errors.New("no zip payload found")

	// ErrUnsafePath is returned for archive entries that would land outside the target directory
	ErrUnsafePath = errors.New("archive entry escapes extraction directory")
)

var (
	crxMagic     = []byte("Cr24")
	zipSignature = []byte("PK\x03\x04")
)

// Unpacked describes an extension extracted to disk
type Unpacked struct {
	Dir             string
	Name            string
	Version         string
	ManifestVersion int
}

// Extractor unpacks signed extension archives into a working directory
type Extractor struct {
	sourceDir  string
	extractDir string
	logger     *zap.Logger
}

// NewExtractor creates an extractor reading archives from sourceDir and writing under extractDir
func NewExtractor(sourceDir, extractDir string, logger *zap.Logger) *Extractor {
	return &Extractor{
		sourceDir:  sourceDir,
		extractDir: extractDir,
		logger:     logger,
	}
}

// ExtractAll unpacks each named archive from the source directory, preserving order
func (e *Extractor) ExtractAll(ctx context.Context, names []string) ([]*Unpacked, error) {
	unpacked := make([]*Unpacked, 0, len(names))
	for _, name := range names {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.sourceDir, name)
		}
		u, err := e.Extract(ctx, path)
		if err != nil {
			return nil, err
		}
		unpacked = append(unpacked, u)
	}
	return unpacked, nil
}

// Extract unpacks a single archive into <extractDir>/<archive stem>
func (e *Extractor) Extract(ctx context.Context, archivePath string) (*Unpacked, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	base := filepath.Base(archivePath)
	dest := filepath.Join(e.extractDir, strings.TrimSuffix(base, filepath.Ext(base)))

	e.logger.Info("Extracting extension", zap.String("archive", base))

	data, err := os.ReadFile(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", archivePath, err)
	}

	offset, err := ZipOffset(data)
	if err != nil {
		return nil, fmt.Errorf("could not find zip data in %s: %w", archivePath, err)
	}

	// Stale files from an earlier version of the same extension must not survive
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", dest, err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	payload := data[offset:]
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %s", ErrUnsafePath, archivePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open zip payload of %s: %w", archivePath, err)
	}

	for _, f := range zr.File {
		if err := extractFile(f, dest); err != nil {
			return nil, fmt.Errorf("failed to extract %s from %s: %w", f.Name, base, err)
		}
	}

	u := &Unpacked{Dir: dest}
	if err := readManifest(dest, u); err != nil {
		e.logger.Warn("Extension manifest unreadable", zap.String("dir", dest), zap.Error(err))
	}

	e.logger.Info("Extension extracted",
		zap.String("dir", dest),
		zap.String("name", u.Name),
		zap.String("version", u.Version),
		zap.Int("files", len(zr.File)),
	)

	return u, nil
}

// ZipOffset returns the offset of the ZIP payload inside a CRX (v2 or v3) or plain ZIP archive.
// When the header cannot be trusted it falls back to the first ZIP local file header.
func ZipOffset(data []byte) (int64, error) {
	if bytes.HasPrefix(data, zipSignature) {
		return 0, nil
	}

	if bytes.HasPrefix(data, crxMagic) && len(data) >= 12 {
		version := binary.LittleEndian.Uint32(data[4:8])
		var offset uint64
		switch version {
		case 3:
			offset = 12 + uint64(binary.LittleEndian.Uint32(data[8:12]))
		case 2:
			if len(data) >= 16 {
				keyLen := uint64(binary.LittleEndian.Uint32(data[8:12]))
				sigLen := uint64(binary.LittleEndian.Uint32(data[12:16]))
				offset = 16 + keyLen + sigLen
			}
		}
		if offset > 0 && offset+uint64(len(zipSignature)) <= uint64(len(data)) &&
			bytes.Equal(data[offset:offset+uint64(len(zipSignature))], zipSignature) {
			return int64(offset), nil
		}
	}

	idx := bytes.Index(data, zipSignature)
	if idx < 0 {
		return 0, ErrNoZipPayload
	}
	return int64(idx), nil
}

// extractFile writes one archive entry below dest
func extractFile(f *zip.File, dest string) error {
	target := filepath.Join(dest, filepath.FromSlash(f.Name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}

	// Symlinks and device entries could point outside dest
	if !f.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrUnsafePath, f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// readManifest fills name and version from manifest.json when present
func readManifest(dir string, u *Unpacked) error {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	// Chrome tolerates a UTF-8 BOM in manifests
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid manifest.json: %w", err)
	}

	m := gson.New(raw)
	u.Name, _ = m.Get("name").Val().(string)
	u.Version, _ = m.Get("version").Val().(string)
	if mv, ok := m.Get("manifest_version").Val().(float64); ok {
		u.ManifestVersion = int(mv)
	}
	return nil
}
