package gateway

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authgw/internal/auth/jwt"
)

// issuer signs tokens for one key id and publishes a key set for it.
type issuer struct {
	kid  string
	priv *rsa.PrivateKey
	key  jwt.SigningKey
}

func newIssuer(t *testing.T, kid string) *issuer {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub, err := jwk.FromRaw(&priv.PublicKey)
	require.NoError(t, err)
	raw, err := json.Marshal(pub)
	require.NoError(t, err)

	var key jwt.SigningKey
	require.NoError(t, json.Unmarshal(raw, &key))
	key.KeyID = kid

	return &issuer{kid: kid, priv: priv, key: key}
}

func (i *issuer) sign(t *testing.T, kid string, claims jwt.Claims) string {
	t.Helper()

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	hdrs := jws.NewHeaders()
	require.NoError(t, hdrs.Set(jws.KeyIDKey, kid))

	signed, err := jws.Sign(payload, jws.WithKey(jwa.RS256, i.priv, jws.WithProtectedHeaders(hdrs)))
	require.NoError(t, err)
	return string(signed)
}

func (i *issuer) verifier() jwt.Verifier {
	keys := jwt.NewKeySet(i.key)
	fetcher := jwt.FetcherFunc(func(context.Context) (*jwt.KeySet, error) {
		return keys, nil
	})
	return jwt.NewVerifier(jwt.NewKeySetCache(time.Minute), fetcher)
}

func validClaims() jwt.Claims {
	return jwt.Claims{
		Subject:        "user-42",
		OrganizationID: "org-7",
		Roles:          []string{"admin", "pilot"},
		ExpiresAt:      time.Now().Add(time.Hour).Unix(),
	}
}

// recordingBackend answers {"ok":true} and remembers the last request.
type recordingBackend struct {
	*httptest.Server
	calls atomic.Int32

	mu   sync.Mutex
	last *http.Request
	body []byte
}

func newRecordingBackend(t *testing.T) *recordingBackend {
	t.Helper()

	b := &recordingBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		buf, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.last = r.Clone(context.Background())
		b.body = buf
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *recordingBackend) lastRequest() *http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
