// Package jwt verifies RS256 bearer tokens against a remotely published
// JSON Web Key Set.
//
// Three pieces cooperate:
//
//   - Fetcher retrieves the key set (HTTPFetcher does so over HTTP,
//     optionally behind a circuit breaker).
//   - KeySetCache keeps the last fetched KeySet for a fixed TTL and swaps
//     it atomically on refresh. A failed refresh leaves the cache as it was.
//   - Verifier runs the verification steps in order and stops at the first
//     failure, reporting it as a *VerificationError with a Kind.
//
// Usage:
//
//	cache := jwt.NewKeySetCache(5 * time.Minute)
//	fetcher := jwt.NewHTTPFetcher(jwksURL)
//	verifier := jwt.NewVerifier(cache, fetcher)
//
//	claims, err := verifier.Verify(ctx, token)
//	if err != nil {
//	    kind := jwt.KindOf(err) // MalformedToken, UnknownKeyID, ...
//	}
package jwt
