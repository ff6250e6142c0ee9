// Package routepath stores canonical screen paths for the EcoTrack client.
package routepath

import (
	"net/url"
	"path"
	"strings"
)

const (
	Root             = "/"
	Login            = "/login"
	Register         = "/register"
	Challenges       = "/challenges"
	ChallengesPrefix = "/challenges/"
	ChallengePattern = ChallengesPrefix + ":id"
	ChallengesAdd    = "/challenges/add"
	JoinPrefix       = "/challenges/join/"
	JoinPattern      = JoinPrefix + ":id"
	Events           = "/events"
	EventsPrefix     = "/events/"
	EventPattern     = EventsPrefix + ":id"
	Tips             = "/tips"
	MyActivities     = "/my-activities"
	ActivitiesPrefix = "/my-activities/"
	ActivityPattern  = ActivitiesPrefix + ":id"
	MyProfile        = "/myprofile"
)

// patterns is ordered so literal segments win over :id.
var patterns = []string{
	Root,
	Login,
	Register,
	Challenges,
	ChallengesAdd,
	JoinPattern,
	ChallengePattern,
	Events,
	EventPattern,
	Tips,
	MyActivities,
	ActivityPattern,
	MyProfile,
}

var protected = map[string]bool{
	MyProfile:       true,
	ChallengesAdd:   true,
	MyActivities:    true,
	JoinPattern:     true,
	ActivityPattern: true,
}

// Challenge returns the challenge detail route.
func Challenge(id string) string {
	return ChallengesPrefix + escapeSegment(id)
}

// JoinChallenge returns the join-challenge route.
func JoinChallenge(id string) string {
	return JoinPrefix + escapeSegment(id)
}

// Event returns the event detail route.
func Event(id string) string {
	return EventsPrefix + escapeSegment(id)
}

// Activity returns the progress route for one joined challenge.
func Activity(id string) string {
	return ActivitiesPrefix + escapeSegment(id)
}

// Clean drops any query or fragment and trailing slash, and resolves
// dot segments. The result always starts with "/".
func Clean(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return path.Clean(raw)
}

// Match resolves p to its pattern and the unescaped :id segment, if any.
func Match(p string) (pattern string, id string, ok bool) {
	p = Clean(p)
	for _, candidate := range patterns {
		if id, ok := matchPattern(candidate, p); ok {
			return candidate, id, true
		}
	}
	return "", "", false
}

// IsProtected reports whether p requires a signed-in identity.
func IsProtected(p string) bool {
	pattern, _, ok := Match(p)
	return ok && protected[pattern]
}

func matchPattern(pattern, p string) (string, bool) {
	prefix, isParam := strings.CutSuffix(pattern, ":id")
	if !isParam {
		return "", pattern == p
	}
	rest, found := strings.CutPrefix(p, prefix)
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	id, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return id, true
}

func escapeSegment(raw string) string {
	return url.PathEscape(strings.TrimSpace(raw))
}
