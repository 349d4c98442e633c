// Package artifact packages a single handler source file into the zip
// archive uploaded as function code.
package artifact

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a-pavithraa/lambda-publish/common"
	"github.com/rs/zerolog/log"
)

// DefaultBaseDir is the project-relative tree holding handler sources.
const DefaultBaseDir = "src/main/Lambdas"

// MaxZipSize is the largest archive Lambda accepts as a direct upload.
const MaxZipSize = 50 << 20

// entryTime is stamped on every entry so identical sources zip identically.
var entryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

type Artifact struct {
	Name       string
	Bytes      []byte
	CodeSha256 string
}

// Builder resolves source files under BaseDir/Environment.
type Builder struct {
	BaseDir     string
	Environment string
}

// Build reads sourceFile and returns a single-entry deflate archive whose
// entry is named exactly sourceFile. The working directory is never changed.
func (b Builder) Build(sourceFile string) (*Artifact, error) {
	path, name, err := b.resolve(sourceFile)
	if err != nil {
		return nil, &common.ArtifactError{Path: sourceFile, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &common.ArtifactError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &common.ArtifactError{Path: path, Err: errors.New("source is a directory")}
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, &common.ArtifactError{Path: path, Err: err}
	}

	zipped, err := zipSingle(name, contents)
	if err != nil {
		return nil, &common.ArtifactError{Path: path, Err: err}
	}
	if len(zipped) > MaxZipSize {
		return nil, &common.ArtifactError{
			Path: path,
			Err:  fmt.Errorf("archive is %d bytes, limit is %d", len(zipped), MaxZipSize),
		}
	}

	sum := sha256.Sum256(zipped)
	log.Debug().
		Str("path", path).
		Str("entry", name).
		Int("size", len(zipped)).
		Msg("Artifact built")

	return &Artifact{
		Name:       name,
		Bytes:      zipped,
		CodeSha256: base64.StdEncoding.EncodeToString(sum[:]),
	}, nil
}

// resolve returns the absolute source path and the archive entry name.
func (b Builder) resolve(sourceFile string) (string, string, error) {
	if common.TrimAndCheckEmptyString(&sourceFile) {
		return "", "", errors.New("source file name is empty")
	}
	if filepath.IsAbs(sourceFile) {
		return "", "", errors.New("source file name must be relative")
	}
	clean := filepath.Clean(sourceFile)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", "", errors.New("source file escapes the lambdas directory")
	}

	base := b.BaseDir
	if common.TrimAndCheckEmptyString(&base) {
		base = DefaultBaseDir
	}
	root, err := filepath.Abs(filepath.Join(base, b.Environment))
	if err != nil {
		return "", "", err
	}
	return filepath.Join(root, clean), filepath.ToSlash(sourceFile), nil
}

func zipSingle(name string, contents []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	header.SetMode(fs.FileMode(0o644))

	entry, err := w.CreateHeader(header)
	if err != nil {
		return nil, err
	}
	if _, err := entry.Write(contents); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
