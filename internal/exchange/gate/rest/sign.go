package rest

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"sort"
	"strings"
)

type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign возвращает hex(HMAC-SHA512) строки METHOD\nPATH\nQUERY\nBODY_HASH\nTIMESTAMP.
func (s *Signer) Sign(method, path, query string, body []byte, timestamp string) string {
	return s.SignString(SignatureString(method, path, query, PayloadHash(body), timestamp))
}

func (s *Signer) SignString(payload string) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func SignatureString(method, path, query, payloadHash, timestamp string) string {
	return strings.Join([]string{strings.ToUpper(method), path, query, payloadHash, timestamp}, "\n")
}

func PayloadHash(body []byte) string {
	sum := sha512.Sum512(body)
	return hex.EncodeToString(sum[:])
}

func CanonicalPath(prefix, endpoint string) string {
	segments := make([]string, 0, 8)
	for _, part := range []string{prefix, endpoint} {
		for _, seg := range strings.Split(part, "/") {
			if seg != "" {
				segments = append(segments, seg)
			}
		}
	}
	return "/" + strings.Join(segments, "/")
}

// CanonicalQuery без percent-encoding: подпись считается по сырым значениям.
func CanonicalQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
