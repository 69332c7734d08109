package apicache

import (
	"regexp"
	"strings"
	"time"
)

// Matcher reports whether a rule applies to a route.
type Matcher func(route string) bool

// Exact matches one route.
func Exact(route string) Matcher {
	return func(r string) bool { return r == route }
}

// Prefix matches routes starting with p. "/characters" matches
// "/charactersX"; use Segment when that is not wanted.
func Prefix(p string) Matcher {
	return func(r string) bool { return strings.HasPrefix(r, p) }
}

// Contains matches routes containing s anywhere.
func Contains(s string) Matcher {
	return func(r string) bool { return strings.Contains(r, s) }
}

// Segment matches p itself and every route below it on a path boundary:
// Segment("/stats") matches "/stats" and "/stats/overall" but not
// "/statistics".
func Segment(p string) Matcher {
	p = strings.TrimSuffix(p, "/")
	return func(r string) bool {
		if !strings.HasPrefix(r, p) {
			return false
		}
		rest := r[len(p):]
		return rest == "" || rest[0] == '/' || rest[0] == '?'
	}
}

// Regexp matches routes against expr. It panics if expr does not compile,
// like regexp.MustCompile; rule tables are static.
func Regexp(expr string) Matcher {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

// Rule assigns a TTL to the routes its matcher accepts.
type Rule struct {
	Name  string
	Match Matcher
	TTL   time.Duration
}

// Policy resolves a route to a TTL. Rules are evaluated in order and the
// first match wins; routes matching no rule get the default TTL.
// A Policy is immutable and safe for concurrent use.
type Policy struct {
	rules []Rule
	def   time.Duration
}

// NewPolicy returns a policy with the given default TTL and ordered rules.
func NewPolicy(def time.Duration, rules ...Rule) *Policy {
	return &Policy{rules: append([]Rule(nil), rules...), def: def}
}

// ResolveTTL returns the TTL of the first rule matching route, or the
// default TTL.
func (p *Policy) ResolveTTL(route string) time.Duration {
	ttl, _ := p.Resolve(route)
	return ttl
}

// Resolve is ResolveTTL that also names the matching rule ("" for the
// default).
func (p *Policy) Resolve(route string) (time.Duration, string) {
	for _, r := range p.rules {
		if r.Match(route) {
			return r.TTL, r.Name
		}
	}
	return p.def, ""
}

// Default returns the TTL used when no rule matches.
func (p *Policy) Default() time.Duration { return p.def }

// Rules returns a copy of the ordered rules.
func (p *Policy) Rules() []Rule { return append([]Rule(nil), p.rules...) }

// TTL tiers of the content API.
const (
	TTLLive      = 30 * time.Second
	TTLUser      = time.Minute
	TTLShort     = 5 * time.Minute
	TTLMedium    = 10 * time.Minute
	TTLLong      = 30 * time.Minute
	TTLReference = time.Hour
)

// DefaultPolicy is the route table of the content API. Reference data
// (categories, eras, timeline, media) lives longest; per-user and live
// analytics data shortest. More specific rules come first.
func DefaultPolicy() *Policy {
	return NewPolicy(TTLShort,
		Rule{Name: "analytics-live", Match: Regexp(`^/analytics/(real-time|export)(/|\?|$)`), TTL: TTLLive},
		Rule{Name: "quotes", Match: Segment("/content/quotes/random"), TTL: TTLLive},
		Rule{Name: "auth", Match: Segment("/auth"), TTL: TTLLive},

		Rule{Name: "user-progress", Match: Segment("/progress"), TTL: TTLUser},
		Rule{Name: "stats-user", Match: Segment("/stats/user"), TTL: TTLUser},
		Rule{Name: "stats-progress", Match: Segment("/stats/progress"), TTL: TTLUser},
		Rule{Name: "users", Match: Segment("/users"), TTL: TTLUser},
		Rule{Name: "recommendations-user", Match: Segment("/recommendations/for-user"), TTL: TTLUser},

		Rule{Name: "character-categories", Match: Exact("/characters/categories"), TTL: TTLReference},
		Rule{Name: "content-reference", Match: Regexp(`^/content/(categories|eras|subcategories|timeline|locations)(/|\?|$)`), TTL: TTLReference},
		Rule{Name: "media", Match: Segment("/media"), TTL: TTLReference},

		Rule{Name: "recommendations-trending", Match: Segment("/recommendations/trending"), TTL: TTLLong},
		Rule{Name: "recommendations-collections", Match: Segment("/recommendations/collections"), TTL: TTLLong},
		Rule{Name: "content-featured", Match: Segment("/content/featured"), TTL: TTLLong},

		Rule{Name: "characters", Match: Segment("/characters"), TTL: TTLMedium},
		Rule{Name: "recommendations", Match: Segment("/recommendations"), TTL: TTLMedium},

		Rule{Name: "content-search", Match: Segment("/content/search"), TTL: TTLShort},
		Rule{Name: "stats", Match: Segment("/stats"), TTL: TTLShort},
		Rule{Name: "analytics", Match: Segment("/analytics"), TTL: TTLShort},
	)
}
