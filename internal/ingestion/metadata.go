package ingestion

import (
	"net/url"
	"strings"
)

// redditHosts are the hosts whose paths carry the community as /r/<name>/.
var redditHosts = map[string]bool{
	"reddit.com":     true,
	"www.reddit.com": true,
	"old.reddit.com": true,
	"new.reddit.com": true,
	"np.reddit.com":  true,
}

// InferCommunity returns the community named in a post permalink such as
// https://www.reddit.com/r/homelab/comments/abc/title/, or "" when the URL
// does not name one. It is a best-effort fallback for records whose
// directory did not identify their community.
func InferCommunity(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !redditHosts[strings.ToLower(u.Hostname())] {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "r" || segments[1] == "" {
		return ""
	}
	return segments[1]
}
