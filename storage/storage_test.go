package storage

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adapters returns a fresh instance of every in-package adapter.
func adapters(t *testing.T) map[string]Adapter {
	t.Helper()
	f, err := NewFile(memfs.New(), "/cache", 0)
	require.NoError(t, err)
	return map[string]Adapter{
		"memory": NewMemory(),
		"file":   f,
	}
}

func TestAdapter_Contract(t *testing.T) {
	for name, a := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := a.Get("missing")
			assert.False(t, ok)

			require.NoError(t, a.Set("cache:v:char:1", `{"data":1}`))
			require.NoError(t, a.Set("cache:t:char:1", "0"))
			require.NoError(t, a.Set("other:x", "y"))

			v, ok := a.Get("cache:v:char:1")
			assert.True(t, ok)
			assert.Equal(t, `{"data":1}`, v)

			require.NoError(t, a.Set("cache:v:char:1", `{"data":2}`))
			v, _ = a.Get("cache:v:char:1")
			assert.Equal(t, `{"data":2}`, v, "Set must overwrite")

			keys := a.Keys("cache:")
			sort.Strings(keys)
			assert.Equal(t, []string{"cache:t:char:1", "cache:v:char:1"}, keys)
			assert.Len(t, a.Keys(""), 3)

			a.Remove("cache:v:char:1")
			a.Remove("cache:v:char:1") // idempotent
			_, ok = a.Get("cache:v:char:1")
			assert.False(t, ok)
			assert.Equal(t, []string{"cache:t:char:1"}, a.Keys("cache:"))
		})
	}
}

// Keys containing path separators, wildcards and unicode round-trip.
func TestAdapter_ArbitraryKeys(t *testing.T) {
	keys := []string{"api:/characters?page=1&limit=20", "a/b/../c", "100%_done", "emoji🙂"}
	for name, a := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range keys {
				require.NoError(t, a.Set(k, "v:"+k))
			}
			for _, k := range keys {
				v, ok := a.Get(k)
				assert.True(t, ok, k)
				assert.Equal(t, "v:"+k, v)
			}
			assert.Len(t, a.Keys(""), len(keys))
			assert.Len(t, a.Keys("100%"), 1)
		})
	}
}

func TestMemory_Quota(t *testing.T) {
	m := NewMemoryWithQuota(10)

	require.NoError(t, m.Set("k1", "abc")) // 5 bytes
	assert.Equal(t, 5, m.Used())

	err := m.Set("k2", "abcdef") // 8 more would make 13
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.Equal(t, 5, m.Used(), "failed write must not count")

	// Overwriting replaces the old size instead of adding to it.
	require.NoError(t, m.Set("k1", "abcdefgh"))
	assert.Equal(t, 10, m.Used())

	m.Remove("k1")
	assert.Equal(t, 0, m.Used())
	require.NoError(t, m.Set("k2", "abcdef"))
	assert.Equal(t, 1, m.Len())
}

func TestFile_NewFile(t *testing.T) {
	tests := []struct {
		name      string
		nilFS     bool
		dir       string
		wantError bool
	}{
		{name: "valid directory", dir: "/cache"},
		{name: "nested directory is created", dir: "/var/cache/entries"},
		{name: "nil filesystem", nilFS: true, dir: "/cache", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fs billy.Filesystem = memfs.New()
			if tt.nilFS {
				fs = nil
			}
			f, err := NewFile(fs, tt.dir, 0)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, f)
		})
	}
}

func TestFile_QuotaAndReopen(t *testing.T) {
	fs := memfs.New()
	f, err := NewFile(fs, "/cache", 16)
	require.NoError(t, err)

	require.NoError(t, f.Set("a", "0123456789"))
	err = f.Set("b", "0123456789")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, ErrQuotaExceeded, KindOf(err))
	assert.EqualValues(t, 10, f.Used())

	// A stale temp file from an interrupted write is cleaned up and usage
	// is recomputed from the directory.
	require.NoError(t, util.WriteFile(fs, "/cache/.tmp-123", []byte("partial"), 0o644))
	f2, err := NewFile(fs, "/cache", 16)
	require.NoError(t, err)
	assert.EqualValues(t, 10, f2.Used())
	_, err = fs.Stat("/cache/.tmp-123")
	assert.Error(t, err, "temp file must be removed")

	v, ok := f2.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "0123456789", v)

	f2.Remove("a")
	assert.EqualValues(t, 0, f2.Used())
	require.NoError(t, f2.Set("b", "0123456789"))
}

// Keys too long for a file name are stored under a digest name and still
// round-trip, list and survive a reopen.
func TestFile_LongKeys(t *testing.T) {
	long := "cache:v:api:/content/search?" + strings.Repeat("category=ancient&q=x", 14)
	require.Greater(t, len(long), 255)

	for name, fs := range map[string]billy.Filesystem{
		"memfs": memfs.New(),
		"osfs":  osfs.New(t.TempDir()),
	} {
		t.Run(name, func(t *testing.T) {
			f, err := NewFile(fs, "cache", 0)
			require.NoError(t, err)

			require.NoError(t, f.Set(long, `{"data":[1,2]}`))
			require.NoError(t, f.Set("cache:v:short", "1"))

			v, ok := f.Get(long)
			require.True(t, ok)
			assert.Equal(t, `{"data":[1,2]}`, v)

			keys := f.Keys("cache:v:")
			sort.Strings(keys)
			assert.Equal(t, []string{long, "cache:v:short"}, keys)

			infos, err := fs.ReadDir("cache")
			require.NoError(t, err)
			var total int64
			for _, fi := range infos {
				assert.LessOrEqual(t, len(fi.Name()), 255, fi.Name())
				total += fi.Size()
			}
			assert.Equal(t, total, f.Used())

			f2, err := NewFile(fs, "cache", 0)
			require.NoError(t, err)
			v, ok = f2.Get(long)
			require.True(t, ok)
			assert.Equal(t, `{"data":[1,2]}`, v)

			f2.Remove(long)
			_, ok = f2.Get(long)
			assert.False(t, ok)
			assert.Equal(t, []string{"cache:v:short"}, f2.Keys(""))
		})
	}
}

// A digest-named file holding another key is not served for this one.
func TestFile_LongKeyHeaderMismatch(t *testing.T) {
	fs := memfs.New()
	f, err := NewFile(fs, "/cache", 0)
	require.NoError(t, err)

	long := strings.Repeat("k", 300)
	require.NoError(t, f.Set(long, "v"))
	p, hashed := f.path(long)
	require.True(t, hashed)
	require.NoError(t, util.WriteFile(fs, p, []byte(hashedHeader(strings.Repeat("j", 300))+"v"), 0o644))

	_, ok := f.Get(long)
	assert.False(t, ok)
}

// Foreign files in the directory are ignored by Keys.
func TestFile_KeysIgnoresForeignFiles(t *testing.T) {
	fs := memfs.New()
	f, err := NewFile(fs, "/cache", 0)
	require.NoError(t, err)
	require.NoError(t, f.Set("cache:v:x", "1"))
	require.NoError(t, util.WriteFile(fs, "/cache/README.md", []byte("hi"), 0o644))

	assert.Equal(t, []string{"cache:v:x"}, f.Keys(""))
}

type failingAdapter struct{ *Memory }

func (failingAdapter) Set(key, _ string) error {
	return &Error{Op: "set", Key: key, Kind: ErrUnavailable, Err: errors.New("read-only")}
}

func TestProbe(t *testing.T) {
	m := NewMemory()
	require.NoError(t, Probe(m))
	assert.Equal(t, 0, m.Len(), "probe key must be removed")

	err := Probe(failingAdapter{Memory: NewMemory()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	err = Probe(nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := error(&Error{Op: "set", Key: "k", Kind: ErrQuotaExceeded, Err: cause})

	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "storage: quota exceeded (op=set key=k): disk on fire", err.Error())

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "k", se.Key)

	assert.Equal(t, ErrCorruptedEntry, KindOf(&Error{Kind: ErrCorruptedEntry}))
	assert.Nil(t, KindOf(errors.New("plain")))
	assert.True(t, strings.HasPrefix((&Error{Kind: ErrUnavailable}).Error(), "storage: unavailable"))
}
