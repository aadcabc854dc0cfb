package jwt

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// SigningKey is one published RSA public key.
type SigningKey struct {
	KeyID     string `json:"kid"`
	KeyType   string `json:"kty,omitempty"`
	Algorithm string `json:"alg,omitempty"`
	Use       string `json:"use,omitempty"`
	Modulus   string `json:"n"`
	Exponent  string `json:"e"`
}

// PublicKey reconstructs the RSA public key from the base64url modulus
// and exponent.
func (k SigningKey) PublicKey() (*rsa.PublicKey, error) {
	if k.KeyType != "" && k.KeyType != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", k.KeyType)
	}
	if k.Modulus == "" || k.Exponent == "" {
		return nil, fmt.Errorf("key %s is missing modulus or exponent", k.KeyID)
	}

	// Published sets may omit kty; jwk needs it to pick the key type.
	raw, err := json.Marshal(map[string]string{
		"kty": "RSA",
		"kid": k.KeyID,
		"n":   k.Modulus,
		"e":   k.Exponent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode key %s: %w", k.KeyID, err)
	}

	key, err := jwk.ParseKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key %s: %w", k.KeyID, err)
	}

	var pub rsa.PublicKey
	if err := key.Raw(&pub); err != nil {
		return nil, fmt.Errorf("failed to extract RSA key %s: %w", k.KeyID, err)
	}
	return &pub, nil
}

// KeySet is an immutable, ordered set of signing keys. It is replaced
// wholesale on refresh and never modified after construction.
type KeySet struct {
	keys []SigningKey
}

// NewKeySet copies keys into a new KeySet.
func NewKeySet(keys ...SigningKey) *KeySet {
	cp := make([]SigningKey, len(keys))
	copy(cp, keys)
	return &KeySet{keys: cp}
}

// Find returns the first key with the given key id.
func (s *KeySet) Find(kid string) (SigningKey, bool) {
	if s == nil {
		return SigningKey{}, false
	}
	for _, k := range s.keys {
		if k.KeyID == kid {
			return k, true
		}
	}
	return SigningKey{}, false
}

// Len returns the number of keys.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns a copy of the keys in publication order.
func (s *KeySet) Keys() []SigningKey {
	if s == nil {
		return nil
	}
	cp := make([]SigningKey, len(s.keys))
	copy(cp, s.keys)
	return cp
}

// KeyIDs returns the key ids in publication order.
func (s *KeySet) KeyIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		ids = append(ids, k.KeyID)
	}
	return ids
}

type keySetDocument struct {
	Keys []SigningKey `json:"keys"`
}

// MarshalJSON encodes the set as {"keys":[...]}.
func (s *KeySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(keySetDocument{Keys: s.Keys()})
}

// ParseKeySet decodes a {"keys":[...]} document.
func ParseKeySet(data []byte) (*KeySet, error) {
	var doc keySetDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}
	if doc.Keys == nil {
		return nil, fmt.Errorf("failed to decode key set: missing \"keys\" member")
	}
	return &KeySet{keys: doc.Keys}, nil
}
