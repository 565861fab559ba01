package auth

// CheckPermission enforces that claims grant required. An empty required
// permission authorizes any verified token without inspecting the
// permissions claim.
func CheckPermission(required string, claims Claims) error {
	if required == "" {
		return nil
	}
	if _, ok := claims.Permissions(); !ok {
		return newError(KindInvalidTokenPayload, "Permissions not included in JWT.", nil)
	}
	if claims.HasPermission(required) {
		return nil
	}
	return newError(KindUnauthorized, "Permission not found.", nil)
}
