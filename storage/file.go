package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const (
	tempPrefix = ".tmp-"

	// maxNameLen is the usual file name limit (NAME_MAX on Linux, macOS).
	maxNameLen = 255
	// hashedPrefix marks digest-named files. '~' is outside the base64url
	// alphabet, so the two name forms never collide.
	hashedPrefix = "~"
)

// File is a durable Adapter storing one file per key under a directory of a
// billy.Filesystem. File names are the base64url encoding of the key. Keys
// whose encoding would exceed the file name limit are stored under
// "~" + hex(sha256(key)) instead, with the key in a "<len>\n<key>" header in
// front of the value. Writes go through a temp file and a rename, so a
// reader never observes a partially written value.
type File struct {
	fs  billy.Filesystem
	dir string

	mu       sync.Mutex // serializes writes and quota accounting
	used     int64
	maxBytes int64
}

// NewFile opens (creating if needed) dir on fs. A positive maxBytes caps the
// total size of stored values; writes beyond it fail with ErrQuotaExceeded.
func NewFile(fs billy.Filesystem, dir string, maxBytes int64) (*File, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem cannot be nil")
	}
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
	}
	f := &File{fs: fs, dir: dir, maxBytes: maxBytes}

	infos, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read cache directory %q: %w", dir, err)
	}
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		if strings.HasPrefix(fi.Name(), tempPrefix) {
			// leftover from an interrupted write
			_ = fs.Remove(fs.Join(dir, fi.Name()))
			continue
		}
		f.used += fi.Size()
	}
	return f, nil
}

// path returns the file of key and whether it is digest-named.
func (f *File) path(key string) (string, bool) {
	name := base64.RawURLEncoding.EncodeToString([]byte(key))
	if len(name) <= maxNameLen {
		return f.fs.Join(f.dir, name), false
	}
	sum := sha256.Sum256([]byte(key))
	return f.fs.Join(f.dir, hashedPrefix+hex.EncodeToString(sum[:])), true
}

func hashedHeader(key string) string {
	return strconv.Itoa(len(key)) + "\n" + key
}

// splitHashed parses the content of a digest-named file into key and value.
func splitHashed(b []byte) (key, value string, ok bool) {
	i := bytes.IndexByte(b, '\n')
	if i <= 0 {
		return "", "", false
	}
	n, err := strconv.Atoi(string(b[:i]))
	if err != nil || n < 0 || len(b)-i-1 < n {
		return "", "", false
	}
	rest := b[i+1:]
	return string(rest[:n]), string(rest[n:]), true
}

// Get returns the value stored under key.
func (f *File) Get(key string) (string, bool) {
	p, hashed := f.path(key)
	b, err := util.ReadFile(f.fs, p)
	if err != nil {
		return "", false
	}
	if !hashed {
		return string(b), true
	}
	k, v, ok := splitHashed(b)
	if !ok || k != key {
		return "", false
	}
	return v, true
}

// Set writes value under key, failing with ErrQuotaExceeded when the
// write would exceed the quota or the disk is full.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, hashed := f.path(key)
	content := value
	if hashed {
		content = hashedHeader(key) + value
	}
	var old int64
	if fi, err := f.fs.Stat(p); err == nil {
		old = fi.Size()
	}
	used := f.used - old + int64(len(content))
	if f.maxBytes > 0 && used > f.maxBytes {
		return &Error{Op: "set", Key: key, Kind: ErrQuotaExceeded}
	}

	if err := f.writeAtomically(p, content); err != nil {
		kind := ErrUnavailable
		if errors.Is(err, syscall.ENOSPC) {
			kind = ErrQuotaExceeded
		}
		return &Error{Op: "set", Key: key, Kind: kind, Err: err}
	}
	f.used = used
	return nil
}

func (f *File) writeAtomically(p, value string) error {
	tmp, err := f.fs.TempFile(f.dir, tempPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := io.WriteString(tmp, value); err != nil {
		_ = tmp.Close()
		_ = f.fs.Remove(name)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = f.fs.Remove(name)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := f.fs.Rename(name, p); err != nil {
		_ = f.fs.Remove(name)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is a no-op.
func (f *File) Remove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, _ := f.path(key)
	fi, err := f.fs.Stat(p)
	if err != nil {
		return
	}
	if err := f.fs.Remove(p); err == nil || os.IsNotExist(err) {
		f.used -= fi.Size()
		if f.used < 0 {
			f.used = 0
		}
	}
}

// Keys returns the stored keys starting with prefix, in no particular order.
func (f *File) Keys(prefix string) []string {
	infos, err := f.fs.ReadDir(f.dir)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() || strings.HasPrefix(fi.Name(), tempPrefix) {
			continue
		}
		k, ok := f.keyOf(fi.Name())
		if ok && strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// keyOf recovers the key stored in the file called name. Files in neither
// name form are not ours.
func (f *File) keyOf(name string) (string, bool) {
	if !strings.HasPrefix(name, hashedPrefix) {
		raw, err := base64.RawURLEncoding.DecodeString(name)
		if err != nil {
			return "", false
		}
		return string(raw), true
	}
	b, err := util.ReadFile(f.fs, f.fs.Join(f.dir, name))
	if err != nil {
		return "", false
	}
	k, _, ok := splitHashed(b)
	return k, ok
}

// Used returns the number of bytes currently stored.
func (f *File) Used() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used
}

var _ Adapter = (*File)(nil)
