package security

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams is the policy list of query parameters stripped before
// fetch (spec §6).
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "gclid": true, "fbclid": true,
	"msclkid": true, "mc_eid": true,
}

// StripTrackingParams removes tracking query parameters from rawURL.
// Idempotent: applying it twice yields the same result as applying it
// once (spec §8).
func StripTrackingParams(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for key := range q {
		if trackingParams[strings.ToLower(key)] {
			q.Del(key)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	u.RawQuery = q.Encode()
	return u.String()
}

// SchemeAllowed reports whether scheme (without trailing colon) is
// acceptable for a fetch: only https is accepted outright; http is
// upgraded or refused by the caller using UpgradeOrRefuse.
func SchemeAllowed(scheme string) bool {
	return strings.EqualFold(scheme, "https")
}

// UpgradeOrRefuse applies spec §6's network collaborator contract: only
// https is accepted; http is upgraded if upgradeInsecure is set,
// otherwise refused (empty string, ok=false).
func UpgradeOrRefuse(rawURL string, upgradeInsecure bool) (upgraded string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return rawURL, true
	case "http":
		if !upgradeInsecure {
			return "", false
		}
		u.Scheme = "https"
		return u.String(), true
	default:
		return "", false
	}
}
