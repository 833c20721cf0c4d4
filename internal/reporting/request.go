package reporting

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Request is one reporting API call: a method name plus its parameters.
// Immutable once constructed.
type Request struct {
	Method string
	Params map[string]string
}

// canonicalQuery serializes the request deterministically: fixed fields first,
// then parameters in sorted key order, then the source-identifier marker. The
// result doubles as the wire payload (before token injection) and the
// deduplication key.
func (r Request) canonicalQuery(sourceField string) string {
	var b strings.Builder
	b.WriteString("module=API&method=")
	b.WriteString(url.QueryEscape(r.Method))
	b.WriteString("&format=JSON")

	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("&")
		b.WriteString(url.QueryEscape(k))
		b.WriteString("=")
		b.WriteString(url.QueryEscape(r.Params[k]))
	}

	b.WriteString("&")
	b.WriteString(url.QueryEscape(sourceField))
	b.WriteString("=1")
	return b.String()
}

// CacheKey derives a stable cache key for a request set: the hash of the
// canonical queries, which already normalize parameter order.
func CacheKey(sourceField string, requests []Request) string {
	h := sha256.New()
	for _, req := range requests {
		h.Write([]byte(req.canonicalQuery(sourceField)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// describe renders the request for error messages: Method({k=v, ...}).
func (r Request) describe() string {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteString("({")
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(r.Params[k])
	}
	b.WriteString("})")
	return b.String()
}
