// Package content holds the cache keys and invalidation rules of the
// character content service.
package content

import (
	"sort"
	"strconv"
	"strings"
)

// Join builds a key from parts separated by ":".
func Join(parts ...string) string { return strings.Join(parts, ":") }

// CharacterListKey identifies one page of the character list, optionally
// filtered by category and era.
func CharacterListKey(category, era string, page, limit int) string {
	parts := []string{"characters", "list"}
	if category != "" {
		parts = append(parts, "cat:"+category)
	}
	if era != "" {
		parts = append(parts, "era:"+era)
	}
	parts = append(parts, "page:"+strconv.Itoa(page), "limit:"+strconv.Itoa(limit))
	return Join(parts...)
}

func CharacterDetailKey(id string) string { return Join("character", "detail", id) }

// SearchKey identifies search results for query, optionally within a category.
func SearchKey(query, category string) string {
	parts := []string{"characters", "search", query}
	if category != "" {
		parts = append(parts, "cat:"+category)
	}
	return Join(parts...)
}

// StatsKey identifies the statistics of one character, or the overall
// statistics when id is empty.
func StatsKey(id string) string {
	if id == "" {
		return Join("stats", "overall")
	}
	return Join("stats", "character", id)
}

func UserProgressKey(userID int) string { return Join("progress", "user", strconv.Itoa(userID)) }

func CharacterProgressKey(characterID string, userID int) string {
	return Join("progress", "character", characterID, "user", strconv.Itoa(userID))
}

// ResultKey identifies a memoized function result: prefix, function name,
// positional arguments, then named arguments as "name:value" sorted by name.
// An empty prefix is kept as a leading empty part.
func ResultKey(prefix, fn string, args []string, named map[string]string) string {
	parts := make([]string, 0, 2+len(args)+len(named))
	parts = append(parts, prefix, fn)
	parts = append(parts, args...)
	names := make([]string, 0, len(named))
	for k := range named {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		parts = append(parts, k+":"+named[k])
	}
	return Join(parts...)
}
