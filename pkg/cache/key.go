package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	merrors "github.com/edbennett/meson-analysis/pkg/errors"
	"github.com/edbennett/meson-analysis/pkg/reader"
)

// Key identifies one parse: the canonical input path, the format, the read
// parameters and a stamp of the input's size and modification time. A
// changed input gets a new key, so stale results are never returned.
type Key struct {
	Path   string
	Format string
	Params string // hex SHA-256 of the sorted parameters
	Stamp  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s@%s#%s", k.Format, k.Path, k.Stamp, k.short())
}

func (k Key) short() string {
	if len(k.Params) >= 8 {
		return k.Params[:8]
	}
	return k.Params
}

// NewKey builds the key for reading path as format with opts.
func NewKey(format, path string, opts reader.Options) (Key, error) {
	canonical, err := canonicalPath(path)
	if err != nil {
		return Key{}, err
	}
	stamp, err := inputStamp(canonical)
	if err != nil {
		return Key{}, err
	}
	return Key{
		Path:   canonical,
		Format: format,
		Params: hashParams(optionParams(opts)),
		Stamp:  stamp,
	}, nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", merrors.IO(err, path)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", merrors.IO(err, path)
	}
	return filepath.Clean(resolved), nil
}

// inputStamp summarises size and modification time. Directories are
// summarised by their entries, since adding a document doesn't always
// touch the directory's own modification time on every filesystem.
func inputStamp(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", merrors.IO(err, path)
	}
	if !info.IsDir() {
		return fileStamp(info), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", merrors.IO(err, path)
	}
	hasher := sha256.New()
	for _, entry := range entries {
		entryInfo, err := entry.Info()
		if err != nil {
			return "", merrors.IO(err, filepath.Join(path, entry.Name()))
		}
		fmt.Fprintf(hasher, "%s=%s|", entry.Name(), fileStamp(entryInfo))
	}
	return "dir-" + hex.EncodeToString(hasher.Sum(nil))[:16], nil
}

func fileStamp(info os.FileInfo) string {
	return strconv.FormatInt(info.Size(), 10) + "-" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
}

// optionParams flattens the parts of opts that change the parse result.
func optionParams(opts reader.Options) map[string]string {
	params := map[string]string{
		"stream_name": opts.StreamName,
	}
	if opts.ValenceMass != nil {
		params["valence_mass"] = strconv.FormatFloat(*opts.ValenceMass, 'g', -1, 64)
	}
	for k, v := range opts.Metadata.Params() {
		params["metadata."+k] = v
	}
	return params
}

// hashParams computes a deterministic SHA-256 over params, sorted by key.
func hashParams(params map[string]string) string {
	var sb strings.Builder
	sb.WriteString("params:")

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(params[k])
	}
	sb.WriteString("|")

	hasher := sha256.New()
	hasher.Write([]byte(sb.String()))
	return hex.EncodeToString(hasher.Sum(nil))
}
