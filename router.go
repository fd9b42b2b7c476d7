package hearth

import "strings"

// RouteKind selects which backend serves a request.
type RouteKind int

const (
	KindLocal RouteKind = iota
	KindCloud
	// KindCloudFallback means a cloud trigger was present but the cloud
	// backend reported unavailable, so the local backend serves the turn.
	KindCloudFallback
)

// Route is the backend-and-augmentation policy chosen once per request.
type Route struct {
	Kind  RouteKind
	Web   bool
	Query string
}

// Tag is the route label written to the audit log.
func (r Route) Tag() string {
	var tag string
	switch r.Kind {
	case KindCloud:
		tag = "CLOUD"
	case KindCloudFallback:
		tag = "LOCAL (Fallback)"
	default:
		tag = "LOCAL"
	}
	if r.Web {
		if r.Kind == KindLocal {
			return "WEB"
		}
		return tag + "+WEB"
	}
	return tag
}

// routeRule is one entry in the ordered rule table. Command prefixes match
// against the original casing, phrases against the lower-cased prompt. A
// matched rule strips its triggers from the prompt and applies its transform.
type routeRule struct {
	prefixes []string
	phrases  []string
	enabled  func() bool
	apply    func(*Route)
}

func (rule routeRule) matches(text string) bool {
	for _, p := range rule.prefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, ph := range rule.phrases {
		if strings.Contains(lower, ph) {
			return true
		}
	}
	return false
}

func (rule routeRule) strip(text string) string {
	for _, p := range rule.prefixes {
		text = strings.ReplaceAll(text, p, "")
	}
	for _, ph := range rule.phrases {
		text = stripFold(text, ph)
	}
	return strings.TrimSpace(text)
}

// stripFold removes every case-insensitive occurrence of phrase.
func stripFold(text, phrase string) string {
	lower := strings.ToLower(phrase)
	for {
		i := strings.Index(strings.ToLower(text), lower)
		if i < 0 {
			return text
		}
		text = text[:i] + text[i+len(phrase):]
	}
}

// Router classifies a prompt into a Route using an ordered rule table.
// First the cloud rule, then the web rule; the rules are independent flags,
// so one prompt can be both cloud-routed and web-augmented.
type Router struct {
	rules []routeRule
}

// NewRouter builds the rule table. cloudAvailable is consulted at routing
// time so a missing credential degrades a cloud trigger to the local
// fallback without raising an error. searchEnabled gates the web rule.
func NewRouter(cloudAvailable func() bool, searchEnabled bool) *Router {
	r := &Router{}
	r.rules = []routeRule{
		{
			prefixes: []string{"/cloud", "/gpt"},
			phrases:  []string{"ask the cloud"},
			apply: func(rt *Route) {
				rt.Kind = KindCloud
				if cloudAvailable == nil || !cloudAvailable() {
					rt.Kind = KindCloudFallback
				}
			},
		},
		{
			prefixes: []string{"/web"},
			phrases:  []string{"search for", "search the web"},
			enabled:  func() bool { return searchEnabled },
			apply: func(rt *Route) {
				rt.Web = true
			},
		},
	}
	return r
}

// Route classifies text and returns the chosen route plus the prompt with
// all matched trigger phrases stripped. When the web flag is set the
// stripped remainder doubles as the search query.
func (r *Router) Route(text string) (Route, string) {
	route := Route{Kind: KindLocal}
	for _, rule := range r.rules {
		if rule.enabled != nil && !rule.enabled() {
			continue
		}
		if !rule.matches(text) {
			continue
		}
		text = rule.strip(text)
		rule.apply(&route)
	}
	text = strings.TrimSpace(text)
	if route.Web {
		route.Query = text
	}
	return route, text
}
