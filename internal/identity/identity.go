// Package identity computes the stable project identifier this module uses
// to ask the remote for a matching project, and extracts the user id this
// client runs as from its bearer token. Token issuance and verification
// belong to the server; this package only reads the claim it needs.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// subjectClaims is the minimal claim set read out of the bearer token. The
// client never holds the signing key, so parsing here is deliberately
// unverified — it is a convenience read, not an authorization decision.
type subjectClaims struct {
	jwt.RegisteredClaims
}

// UserIDFromToken extracts the JWT "sub" claim without verifying the
// signature. Returns an error if the token does not parse as a JWT at all.
func UserIDFromToken(token string) (string, error) {
	parser := jwt.NewParser()

	var claims subjectClaims
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return "", fmt.Errorf("parse bearer token: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("bearer token has no subject claim")
	}
	return claims.Subject, nil
}

// ComputeProjectIdentity derives the stable, not-stored-client-side
// identifier for a (user, absolute folder path, folder name) triple. It is
// invariant under case changes and path-separator style in folderPath, and
// changes whenever the user, path, or folder name changes — a rename or
// move mints a fresh identity by design.
func ComputeProjectIdentity(userID, folderPath, folderName string) string {
	normalizedPath := strings.ToLower(strings.ReplaceAll(folderPath, "\\", "/"))
	material := userID + ":" + normalizedPath + ":" + folderName

	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
