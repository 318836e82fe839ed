// Package store provides SessionStore implementations: in-process memory,
// a JSON file on disk and Redis.
package store

import "portalguard"

// merge overlays the non-empty slots of next onto cur.
func merge(cur, next portalguard.SessionEntry) portalguard.SessionEntry {
	if next.AccessToken != "" {
		cur.AccessToken = next.AccessToken
	}
	if next.RefreshToken != "" {
		cur.RefreshToken = next.RefreshToken
	}
	if len(next.User) > 0 {
		cur.User = append([]byte(nil), next.User...)
	}
	return cur
}

func clone(e portalguard.SessionEntry) portalguard.SessionEntry {
	if e.User != nil {
		e.User = append([]byte(nil), e.User...)
	}
	return e
}
