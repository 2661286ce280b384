package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medword/internal/pkg/jwtutil"
	"medword/internal/transport/http/response"
)

const (
	ContextSubjectKey    = "subject"
	ContextPrivilegedKey = "privileged"
)

const bearerScheme = "Bearer"

// AuthJWT guards the bridge routes. The task pane presents a token minted by
// `medword token`; its role claim decides the privileged capability needed
// to write library prompts, team prompts and shared sources. An empty
// adminRole disables the capability for everyone.
func AuthJWT(secret, adminRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, reason := bearerToken(c.GetHeader("Authorization"))
		if reason != "" {
			deny(c, reason)
			return
		}
		claims, err := jwtutil.ParseToken(secret, raw)
		if err != nil {
			deny(c, "invalid or expired token")
			return
		}
		if claims.Subject == "" {
			deny(c, "token has no subject")
			return
		}

		c.Set(ContextSubjectKey, claims.Subject)
		c.Set(ContextPrivilegedKey, adminRole != "" && claims.Role == adminRole)
		c.Next()
	}
}

// Privileged reports whether the caller holds the admin role.
func Privileged(c *gin.Context) bool {
	return c.GetBool(ContextPrivilegedKey)
}

// bearerToken extracts the token from an Authorization header, or returns
// the reason it is unusable.
func bearerToken(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, _ := strings.Cut(header, " ")
	if scheme != bearerScheme {
		return "", "invalid authorization scheme"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

func deny(c *gin.Context, reason string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, reason)
	c.Abort()
}
