package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/activity-point/api-go/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errInvalidSubject = errors.New("token subject is not a user id")

// AuthMiddleware verifies the bearer token and stores the caller's claims on
// the gin context.
func AuthMiddleware(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header is required"})
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token format"})
			return
		}

		claims, err := ParseToken(bearerToken[1], secret, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
			return
		}

		utils.SetUser(c, claims)
		c.Next()
	}
}

// ParseToken validates an HS256 token from this issuer and returns its
// claims.
func ParseToken(raw, secret, issuer string) (*utils.UserClaims, error) {
	claims := &utils.TokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, errInvalidSubject
	}
	return &utils.UserClaims{UserID: uint(userID), Email: claims.Email}, nil
}
