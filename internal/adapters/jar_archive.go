package adapters

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/zip"

	"loomkit/internal/ports"
	"loomkit/internal/types"
)

// jarTimestamp is stamped on every written entry so equal contents produce
// equal bytes.
var jarTimestamp = time.Date(1980, time.February, 1, 0, 0, 0, 0, time.UTC)

type JarArchiveAdapter struct{}

func NewJarArchiveAdapter() JarArchiveAdapter {
	return JarArchiveAdapter{}
}

func (a JarArchiveAdapter) Read(path string) (*types.JarContents, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to open jar %s", path)).
			WithCause(err)
	}
	defer r.Close()
	jar := &types.JarContents{Entries: make([]types.JarEntry, 0, len(r.File))}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("failed to read %s from %s", f.Name, path)).
				WithCause(err)
		}
		jar.Entries = append(jar.Entries, types.JarEntry{Name: f.Name, Data: data})
	}
	return jar, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Write stores the jar with entries sorted by name. The file is written
// next to its destination and renamed into place.
func (a JarArchiveAdapter) Write(path string, jar *types.JarContents) error {
	entries := append([]types.JarEntry(nil), jar.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return writeAtomic(path, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, entry := range entries {
			header := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate, Modified: jarTimestamp}
			fw, err := zw.CreateHeader(header)
			if err != nil {
				return err
			}
			if _, err := fw.Write(entry.Data); err != nil {
				return err
			}
		}
		return zw.Close()
	})
}

func (a JarArchiveAdapter) Copy(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to open %s", src)).
			WithCause(err)
	}
	defer in.Close()
	return writeAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func (a JarArchiveAdapter) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (a JarArchiveAdapter) ReadEntry(path string, name string) ([]byte, bool, error) {
	if !a.Exists(path) {
		return nil, false, nil
	}
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("failed to open jar %s", path)).
			WithCause(err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}
	return nil, false, nil
}

func (a JarArchiveAdapter) Digest(path string) (string, error) {
	return fileDigest(path)
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to open %s", path)).
			WithCause(err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// readZipEntry returns one entry of a zip file.
func readZipEntry(path string, name string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to open archive %s", path)).
			WithCause(err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name == name {
			return readZipFile(f)
		}
	}
	return nil, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s has no entry %s", path, name))
}

// writeAtomic writes through a temp file in the destination directory and
// renames it into place. The temp file is removed on failure.
func writeAtomic(path string, write func(w io.Writer) error) error {
	if err := ensurePath(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create temp file for %s", path)).
			WithCause(err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", path)).
			WithCause(err)
	}
	if err := write(tmp); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to move %s into place", path)).
			WithCause(err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

var _ ports.JarArchivePort = JarArchiveAdapter{}
