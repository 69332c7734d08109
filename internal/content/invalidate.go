package content

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/IvanBrykalov/contentcache/apicache"
	"github.com/IvanBrykalov/contentcache/cache"
)

// Namespace is the store namespace holding service-level content keys.
const Namespace = "content"

// Invalidator drops cached data after writes to characters or progress.
// It covers both the content keys built in this package and the API
// responses of the routes serving the same data.
type Invalidator[V any] struct {
	keys *cache.Namespace[V]
	api  *apicache.Cache[V]
	log  *slog.Logger
}

// NewInvalidator returns an Invalidator over the content namespace of store
// and the API cache api. Logger may be nil.
func NewInvalidator[V any](store *cache.Store[V], api *apicache.Cache[V], logger *slog.Logger) *Invalidator[V] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Invalidator[V]{keys: store.Namespace(Namespace), api: api, log: logger}
}

// Keys returns the namespace the content keys live in.
func (iv *Invalidator[V]) Keys() *cache.Namespace[V] { return iv.keys }

// Character invalidates everything derived from one character: its detail,
// statistics and progress records, every list and search page, and the
// overall statistics. An empty id invalidates all character data.
// It returns the number of entries removed.
func (iv *Invalidator[V]) Character(id string) int {
	var n int
	if id == "" {
		n = iv.keys.DeleteFunc(func(k string) bool {
			return hasAnyPrefix(k, "character:", "characters:", "stats:")
		})
		n += iv.api.InvalidateByPattern("/characters")
		n += iv.api.InvalidateByPattern("/stats")
	} else {
		detail, stats := CharacterDetailKey(id), StatsKey(id)
		n = iv.keys.DeleteFunc(func(k string) bool {
			return k == detail || k == stats || k == StatsKey("") ||
				hasAnyPrefix(k, "characters:list:", "characters:search:")
		})
		n += iv.api.InvalidateRoute(
			"/characters",
			"/characters/"+id,
			"/stats",
			"/stats/overall",
			"/stats/character/"+id,
			"/content/search",
			"/recommendations/similar/"+id,
			"/media/images/"+id,
			"/media/audio/"+id,
		)
	}
	iv.log.Info("invalidated character cache", "character", id, "count", n)
	return n
}

// Progress invalidates progress data of a user, of a character, or both.
// With neither set every progress entry is removed.
func (iv *Invalidator[V]) Progress(userID int, characterID string) int {
	uid := ""
	if userID > 0 {
		uid = strconv.Itoa(userID)
	}

	userKey := ""
	if uid != "" {
		userKey = UserProgressKey(userID)
	}
	charPrefix := ""
	if characterID != "" {
		charPrefix = Join("progress", "character", characterID) + ":"
	}

	n := iv.keys.DeleteFunc(func(k string) bool {
		if !strings.HasPrefix(k, "progress:") {
			return false
		}
		switch {
		case uid == "" && characterID == "":
			return true
		case userKey != "" && (k == userKey || strings.HasSuffix(k, ":user:"+uid)):
			return true
		case charPrefix != "" && strings.HasPrefix(k, charPrefix):
			return true
		}
		return false
	})

	routes := []string{"/progress", "/stats/progress"}
	if uid != "" {
		routes = append(routes,
			"/progress/user/"+uid,
			"/stats/user/"+uid,
			"/users/"+uid+"/statistics",
			"/users/"+uid+"/achievements",
			"/recommendations/for-user/"+uid,
		)
	}
	n += iv.api.InvalidateRoute(routes...)

	iv.log.Info("invalidated progress cache", "user", userID, "character", characterID, "count", n)
	return n
}

// Pattern removes every content key and API response containing substr.
// It reports whether anything was removed.
func (iv *Invalidator[V]) Pattern(substr string) bool {
	n := iv.keys.DeleteFunc(func(k string) bool { return strings.Contains(k, substr) })
	n += iv.api.InvalidateByPattern(substr)
	iv.log.Info("invalidated cache entries matching pattern", "pattern", substr, "count", n)
	return n > 0
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
