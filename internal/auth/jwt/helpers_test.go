package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/stretchr/testify/require"
)

// newTestKey generates an RSA key pair and its published form.
func newTestKey(t *testing.T, kid string) (*rsa.PrivateKey, SigningKey) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub, err := jwk.FromRaw(&priv.PublicKey)
	require.NoError(t, err)
	raw, err := json.Marshal(pub)
	require.NoError(t, err)

	var sk SigningKey
	require.NoError(t, json.Unmarshal(raw, &sk))
	sk.KeyID = kid
	return priv, sk
}

// signToken signs claims with alg and key, setting kid when non-empty.
func signToken(t *testing.T, alg jwa.SignatureAlgorithm, key interface{}, kid string, claims interface{}) string {
	t.Helper()

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	hdrs := jws.NewHeaders()
	if kid != "" {
		require.NoError(t, hdrs.Set(jws.KeyIDKey, kid))
	}

	signed, err := jws.Sign(payload, jws.WithKey(alg, key, jws.WithProtectedHeaders(hdrs)))
	require.NoError(t, err)
	return string(signed)
}

// staticFetcher returns keys and counts calls.
type staticFetcher struct {
	keys  *KeySet
	err   error
	calls atomic.Int32
}

func (f *staticFetcher) Fetch(_ context.Context) (*KeySet, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.keys, nil
}
