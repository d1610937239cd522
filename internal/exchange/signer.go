package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/suwandre/depthwatch/internal/models"
)

// SigningScheme selects how request parameters are canonicalized before HMAC.
// The schemes are not interchangeable; each profile names the one its
// exchange documents.
type SigningScheme int

const (
	// URL-encoded query sorted by key. The timestamp travels as a query
	// parameter and is part of the signed string.
	SchemeSortedQuery SigningScheme = iota
	// timestamp + k1v1k2v2... with keys sorted and no separators.
	SchemeTimestampConcat
)

func (s SigningScheme) String() string {
	switch s {
	case SchemeSortedQuery:
		return "sorted-query"
	case SchemeTimestampConcat:
		return "timestamp-concat"
	default:
		return "unknown"
	}
}

// Payload returns the string that gets signed. params is read only.
func (s SigningScheme) Payload(params map[string]string, timestamp string) string {
	switch s {
	case SchemeSortedQuery:
		return encodeSorted(params)
	default:
		var b strings.Builder
		b.WriteString(timestamp)
		for _, k := range sortedKeys(params) {
			b.WriteString(k)
			b.WriteString(params[k])
		}
		return b.String()
	}
}

// Sign computes the hex HMAC-SHA256 signature for params under scheme.
func Sign(scheme SigningScheme, creds *models.Credentials, params map[string]string, timestamp string) (string, error) {
	if creds == nil {
		return "", ErrCredentialsMissing
	}

	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(scheme.Payload(params, timestamp)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func sortedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// url.Values.Encode sorts by key as well; kept explicit so the query that is
// sent is byte-identical to the one that was signed.
func encodeSorted(params map[string]string) string {
	var b strings.Builder
	for i, k := range sortedKeys(params) {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
