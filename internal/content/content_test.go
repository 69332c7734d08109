package content

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/IvanBrykalov/contentcache/apicache"
	"github.com/IvanBrykalov/contentcache/cache"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"list unfiltered", CharacterListKey("", "", 1, 12), "characters:list:page:1:limit:12"},
		{"list filtered", CharacterListKey("science", "modern", 2, 20), "characters:list:cat:science:era:modern:page:2:limit:20"},
		{"list era only", CharacterListKey("", "ancient", 1, 12), "characters:list:era:ancient:page:1:limit:12"},
		{"detail", CharacterDetailKey("42"), "character:detail:42"},
		{"search", SearchKey("curie", ""), "characters:search:curie"},
		{"search in category", SearchKey("curie", "science"), "characters:search:curie:cat:science"},
		{"stats character", StatsKey("42"), "stats:character:42"},
		{"stats overall", StatsKey(""), "stats:overall"},
		{"user progress", UserProgressKey(7), "progress:user:7"},
		{"character progress", CharacterProgressKey("42", 7), "progress:character:42:user:7"},
		{"result", ResultKey("svc", "get_character", []string{"42"}, map[string]string{"lang": "en", "full": "1"}), "svc:get_character:42:full:1:lang:en"},
		{"result no prefix", ResultKey("", "overall", nil, nil), ":overall"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func newInvalidator(t *testing.T) (*Invalidator[string], *cache.Namespace[string], *apicache.Cache[string]) {
	t.Helper()
	s := cache.New[string](cache.Options[string]{MaxSize: 100})
	t.Cleanup(func() { _ = s.Close() })
	api := apicache.New(s, apicache.Options{})
	iv := NewInvalidator(s, api, nil)
	return iv, iv.Keys(), api
}

func TestInvalidator_Character(t *testing.T) {
	iv, keys, api := newInvalidator(t)

	keys.Set(CharacterDetailKey("1"), "one")
	keys.Set(CharacterDetailKey("2"), "two")
	keys.Set(CharacterListKey("", "", 1, 12), "list")
	keys.Set(SearchKey("curie", ""), "search")
	keys.Set(StatsKey("1"), "stats-1")
	keys.Set(StatsKey(""), "stats")
	keys.Set(UserProgressKey(7), "progress")
	api.CacheResponse("/characters/1", nil, "one")
	api.CacheResponse("/characters/2", nil, "two")
	api.CacheResponse("/characters", apicache.Params("page", "1"), "list")
	api.CacheResponse("/characters/featured", nil, "featured")

	n := iv.Character("1")
	assert.Equal(t, 7, n)

	assert.True(t, keys.Has(CharacterDetailKey("2")), "other characters survive")
	assert.True(t, keys.Has(UserProgressKey(7)), "progress is not character data")
	_, ok := api.CachedResponse("/characters/2", nil)
	assert.True(t, ok)
	_, ok = api.CachedResponse("/characters/featured", nil)
	assert.True(t, ok, "route invalidation is delimiter-aware")

	iv.Character("")
	assert.False(t, keys.Has(CharacterDetailKey("2")))
	_, ok = api.CachedResponse("/characters/featured", nil)
	assert.False(t, ok)
	assert.True(t, keys.Has(UserProgressKey(7)))
}

func TestInvalidator_Progress(t *testing.T) {
	iv, keys, api := newInvalidator(t)

	keys.Set(UserProgressKey(7), "u7")
	keys.Set(UserProgressKey(8), "u8")
	keys.Set(CharacterProgressKey("42", 7), "c42u7")
	keys.Set(CharacterProgressKey("42", 8), "c42u8")
	keys.Set(CharacterProgressKey("43", 8), "c43u8")
	api.CacheResponse("/stats/user/7", nil, "s7")
	api.CacheResponse("/stats/user/8", nil, "s8")

	assert.Equal(t, 3, iv.Progress(7, ""))
	assert.False(t, keys.Has(UserProgressKey(7)))
	assert.False(t, keys.Has(CharacterProgressKey("42", 7)))
	assert.True(t, keys.Has(CharacterProgressKey("42", 8)))
	_, ok := api.CachedResponse("/stats/user/8", nil)
	assert.True(t, ok)

	assert.Equal(t, 1, iv.Progress(0, "42"))
	assert.True(t, keys.Has(CharacterProgressKey("43", 8)))

	iv.Progress(0, "")
	assert.False(t, keys.Has(UserProgressKey(8)))
	assert.False(t, keys.Has(CharacterProgressKey("43", 8)))
}

func TestInvalidator_Pattern(t *testing.T) {
	iv, keys, api := newInvalidator(t)

	keys.Set(SearchKey("curie", ""), "a")
	api.CacheResponse("/content/search", apicache.Params("q", "curie"), "b")
	keys.Set(SearchKey("tesla", ""), "c")

	assert.True(t, iv.Pattern("curie"))
	assert.False(t, keys.Has(SearchKey("curie", "")))
	assert.True(t, keys.Has(SearchKey("tesla", "")))
	assert.False(t, iv.Pattern("nothing-matches"))
}
