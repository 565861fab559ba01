// Package auth guards HTTP handlers with bearer token verification and
// permission checks for APIs that delegate authentication to an external
// identity provider (for example Auth0).
//
// A request passes through three steps, each of which can reject it:
//
//  1. ExtractBearerToken pulls "Bearer <token>" out of the Authorization
//     header and checks that the token has three dot-separated segments.
//  2. A Verifier decodes the unverified header, requires kid, typ "JWT" and
//     the configured algorithm, resolves the signing key through a KeySource
//     and verifies the signature, expiry, audience and issuer.
//  3. CheckPermission requires the configured permission string to be present
//     in the token's "permissions" claim.
//
// Guard chains the three:
//
//	sec := auth.SecurityConfig{Domain: "tenant.auth0.com", Audience: "https://api.example.com"}
//	sec.Normalize()
//	v, err := auth.NewVerifier(sec, keys) // keys: any KeySource, e.g. a JWKS cache for sec.JWKSURL
//	if err != nil { log.Fatal(err) }
//	guard := auth.NewGuard(v)
//	r.With(guard.Require("read:movies")).Get("/movies", listMovies)
//
// Inside a guarded handler the verified claims are available through
// ClaimsFromContext.
//
// # Errors
//
// Every failure is an *AuthError whose Kind is one of a closed set. Kind
// determines the machine-readable code and HTTP status: credential problems
// map to 401, a missing permission to 403, and an unreachable identity
// provider (KindUpstream) to 503 so that outages are never reported as bad
// credentials.
//
// # Permissions
//
// An empty required permission authorizes any verified token and does not
// inspect the permissions claim. A non-empty one fails with
// KindInvalidTokenPayload when the claim is absent and KindUnauthorized when
// it does not contain the permission.
package auth
