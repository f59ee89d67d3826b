package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "principal"

// AnonymousPrincipal labels requests carrying no usable identity.
const AnonymousPrincipal = "anonymous"

type principalClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Principal returns a middleware that attributes requests to a caller. Caller
// authentication itself happens upstream; this only extracts a label from an
// optional HS256 bearer token so tamper findings can say who triggered the
// check. An absent or invalid token degrades to anonymous — it never rejects
// the request.
func Principal(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(principalKey, AnonymousPrincipal)

		if secret == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			c.Next()
			return
		}

		claims := &principalClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err == nil && parsed.Valid {
			switch {
			case claims.Email != "":
				c.Set(principalKey, claims.Email)
			case claims.Subject != "":
				c.Set(principalKey, claims.Subject)
			}
		}
		c.Next()
	}
}

// PrincipalFrom returns the request's attributed identity.
func PrincipalFrom(c *gin.Context) string {
	if v, ok := c.Get(principalKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return AnonymousPrincipal
}
