// Package dedup implements the deduplication gate for headline ingestion:
// a stable hash over normalized article links plus a pure filter that drops
// candidates already persisted or already present earlier in the same batch.
// The storage-level unique constraint on link_hash remains the authoritative
// enforcement point; this gate just avoids classifying known headlines.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"ticker-pulse/internal/domain"
)

// trackingParams are query parameters that vary between syndicated copies of
// the same article and must not affect identity.
var trackingParams = map[string]struct{}{
	"gclid":  {},
	"fbclid": {},
	"ref":    {},
}

// HashLink returns the hex SHA-256 of the normalized link. Normalization
// lowercases scheme and host, drops the fragment, strips tracking parameters
// and sorts the rest, so tracking variants of one URL hash identically.
// Unparseable links hash as their trimmed raw form.
func HashLink(link string) string {
	link = strings.TrimSpace(link)
	sum := sha256.Sum256([]byte(normalizeLink(link)))
	return hex.EncodeToString(sum[:])
}

func normalizeLink(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if _, drop := trackingParams[key]; drop || strings.HasPrefix(key, "utm_") {
			q.Del(key)
		}
	}
	if len(q) == 0 {
		u.RawQuery = ""
	} else {
		// url.Values.Encode sorts keys; re-encode for a canonical order.
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// FilterNew returns the candidates whose link hash is neither in knownHashes
// nor seen earlier in the batch, preserving input order. Candidates without a
// precomputed LinkHash get one assigned. Pure: neither input is mutated.
func FilterNew(candidates []domain.Headline, knownHashes map[string]struct{}) []domain.Headline {
	if len(candidates) == 0 {
		return nil
	}
	out := make([]domain.Headline, 0, len(candidates))
	inBatch := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		hash := candidate.LinkHash
		if hash == "" {
			hash = HashLink(candidate.Link)
			candidate.LinkHash = hash
		}
		if _, ok := knownHashes[hash]; ok {
			continue
		}
		if _, ok := inBatch[hash]; ok {
			continue
		}
		inBatch[hash] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

// Hashes returns the sorted unique link hashes of a candidate batch, used to
// query persisted state for the known set at the start of a cycle.
func Hashes(candidates []domain.Headline) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		hash := candidate.LinkHash
		if hash == "" {
			hash = HashLink(candidate.Link)
		}
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		out = append(out, hash)
	}
	sort.Strings(out)
	return out
}
