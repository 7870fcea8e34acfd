package rest

import (
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

const emptyPayloadHash = "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e"

func TestSignGoldenGetContract(t *testing.T) {
	s := NewSigner("s3cr3t")
	path := CanonicalPath("/api/v4", "/futures/usdt/contracts/BTC_USDT")

	assert.Equal(t, "/api/v4/futures/usdt/contracts/BTC_USDT", path)
	assert.Equal(t,
		"1436c26ea4341f8ef7c8d048ba985aa31f2ed93cc45fd4f75bcded590f2237e3d554b306e41af11355fb6d778a67365d78540d571cc72e972c9cceebc8ae237d",
		s.Sign("GET", path, "", nil, "1700000000"))
}

func TestSignGoldenGetWithQuery(t *testing.T) {
	s := NewSigner("s3cr3t")
	query := CanonicalQuery(map[string]string{"limit": "2", "interval": "1m", "contract": "BTC_USDT"})

	assert.Equal(t, "contract=BTC_USDT&interval=1m&limit=2", query)
	assert.Equal(t,
		"00fc3d6d79fafd8d23b97d65fe8f5302b12ff89fad0962c08c24fae12d9928b471a39bee08ac6d5c54a946f0b4d02e7c4ecd1fc6dcba9341a6b4ea0e8f8d2614",
		s.Sign("GET", "/api/v4/futures/usdt/candlesticks", query, nil, "1700000000"))
}

func TestSignGoldenPost(t *testing.T) {
	s := NewSigner("s3cr3t")
	body := []byte(`{"contract":"BTC_USDT","iceberg":0,"price":"65000.1","size":1,"tif":"gtc"}`)

	assert.Equal(t,
		"bd9e40a38047122cd53df61cc0428040fdf64c4df89676a30d4b3bb8b935dd51cd874d9eb02042d306aaa5f1c23e01f128a2bdae641c2345a8a7c0eadd06a120",
		PayloadHash(body))
	assert.Equal(t,
		"ee2909bc530f6ffc3d43f6bca80f8e5897d9de1f4bc16b0ee1f5643470a8df4d4d6d7abf4fafe1e5d340e41642d22e895da2a4f0834e687ed64b396b950e15e8",
		s.Sign("POST", "/api/v4/futures/usdt/orders", "", body, "1700000000"))
}

func TestPayloadHashEmpty(t *testing.T) {
	assert.Equal(t, emptyPayloadHash, PayloadHash(nil))
	assert.Equal(t, emptyPayloadHash, PayloadHash([]byte{}))
}

func TestSignatureStringLayout(t *testing.T) {
	got := SignatureString("get", "/api/v4/x", "a=1", "HASH", "42")
	assert.Equal(t, "GET\n/api/v4/x\na=1\nHASH\n42", got)
}

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		prefix, endpoint, want string
	}{
		{"/api/v4", "/futures/usdt/contracts", "/api/v4/futures/usdt/contracts"},
		{"api/v4/", "futures/usdt/contracts", "/api/v4/futures/usdt/contracts"},
		{"/api/v4/", "//futures//usdt/", "/api/v4/futures/usdt"},
		{"", "/futures/usdt/orders", "/futures/usdt/orders"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanonicalPath(tc.prefix, tc.endpoint), "%q + %q", tc.prefix, tc.endpoint)
	}
}

func TestSignerAcceptsAnyKeyLength(t *testing.T) {
	long := strings.Repeat("k", 500)
	for _, key := range []string{"", "k", long} {
		sig := NewSigner(key).Sign("GET", "/p", "", nil, "1")
		assert.Len(t, sig, 128)
	}
}

func TestCanonicalQueryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	paramsGen := gen.MapOf(gen.Identifier(), gen.AnyString())

	properties.Property("ключи в подписи отсортированы и не экранированы", prop.ForAll(
		func(params map[string]string) bool {
			signed := CanonicalQuery(params)
			if len(params) == 0 {
				return signed == ""
			}
			keys := make([]string, 0, len(params))
			for k := range params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, k+"="+params[k])
			}
			return signed == strings.Join(parts, "&")
		},
		paramsGen,
	))

	properties.Property("URL-строка декодируется в тот же набор параметров", prop.ForAll(
		func(params map[string]string) bool {
			encoded := encodeQuery(params)
			decoded, err := url.ParseQuery(encoded)
			if err != nil {
				return false
			}
			if len(decoded) != len(params) {
				return false
			}
			for k, v := range params {
				if decoded.Get(k) != v {
					return false
				}
			}
			return true
		},
		paramsGen,
	))

	properties.Property("подпись детерминирована", prop.ForAll(
		func(secret string, params map[string]string) bool {
			q := CanonicalQuery(params)
			a := NewSigner(secret).Sign("GET", "/api/v4/x", q, nil, "1700000000")
			b := NewSigner(secret).Sign("GET", "/api/v4/x", q, nil, "1700000000")
			return a == b
		},
		gen.AnyString(),
		paramsGen,
	))

	properties.TestingRun(t)
}
