// Package canonical derives stable dedup identities: canonical URLs and
// content fingerprints.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// defaultTrackingParams are stripped from every URL regardless of source
// configuration.
var defaultTrackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"utm_id", "gclid", "fbclid", "igshid", "mc_cid", "mc_eid", "ref",
}

// Canonicalizer normalizes URLs into dedup keys.
type Canonicalizer struct {
	deny map[string]struct{}
}

// New builds a Canonicalizer with the default tracking-parameter deny-list
// plus any extra configured parameters.
func New(extraDenyParams []string) *Canonicalizer {
	deny := make(map[string]struct{}, len(defaultTrackingParams)+len(extraDenyParams))
	for _, p := range defaultTrackingParams {
		deny[strings.ToLower(p)] = struct{}{}
	}
	for _, p := range extraDenyParams {
		deny[strings.ToLower(p)] = struct{}{}
	}
	return &Canonicalizer{deny: deny}
}

// Canonicalize standardizes a URL: lowercases scheme and host, removes
// default ports and fragments, strips tracking parameters, sorts the query,
// and trims a trailing slash from non-root paths. The caller passes the final
// URL observed after redirects so the canonical form points at the target.
func (c *Canonicalizer) Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if _, drop := c.deny[strings.ToLower(param)]; drop {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// fieldSeparator keeps fingerprint inputs unambiguous when concatenated.
const fieldSeparator = "␟"

// Fingerprint hashes a normalized projection of title + extracted text.
// It is deterministic and independent of fetch time, so re-published or
// mirrored content under a different URL produces the same digest.
func Fingerprint(title, text string) string {
	payload := normalizeForHash(title) + fieldSeparator + normalizeForHash(text)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func normalizeForHash(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
