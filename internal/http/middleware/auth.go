package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/travelplanner-backend/internal/http/response"
	"github.com/yungbote/travelplanner-backend/internal/platform/apierr"
	"github.com/yungbote/travelplanner-backend/internal/platform/ctxutil"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

// AuthMiddleware verifies HS256 bearer tokens issued by the account service.
// It never issues tokens itself.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
	issuer string
}

func NewAuthMiddleware(log *logger.Logger, secret, issuer string) *AuthMiddleware {
	middlewareLogger := log.With("Middleware", "AuthMiddleware")
	return &AuthMiddleware{log: middlewareLogger, secret: []byte(secret), issuer: issuer}
}

// RequireIdentity rejects requests without a valid token and attaches the
// caller identity (the token subject) to the request context.
func (am *AuthMiddleware) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			response.RespondProblem(c, apierr.Unauthorized(errors.New("missing or invalid token")))
			return
		}
		userID, err := am.verify(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			response.RespondProblem(c, apierr.Unauthorized(errors.New("missing or invalid token")))
			return
		}
		ctx := ctxutil.WithIdentity(c.Request.Context(), &ctxutil.Identity{UserID: userID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (am *AuthMiddleware) verify(tokenString string) (string, error) {
	if len(am.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if am.issuer != "" {
		opts = append(opts, jwt.WithIssuer(am.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

func extractTokenFromAll(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
