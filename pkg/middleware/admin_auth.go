package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"sermon-publisher/pkg/errno"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/restapi"
)

// AdminClaims 管理接口令牌声明
type AdminClaims struct {
	Operator string `json:"operator"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

const adminRole = "admin"

// AdminAuthMiddleware 校验 Bearer 令牌（HS256），要求 role=admin。
// secret 为空时不做校验。
func AdminAuthMiddleware(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			restapi.Failed(c, errno.NewBizError(errno.ErrUnauthorized, errors.New("missing bearer token")))
			return
		}

		claims, err := ParseAdminToken(tokenString, secret, issuer)
		if err != nil {
			logger.FromContext(c.Request.Context()).WithError(err).Warn("Admin token rejected")
			restapi.Failed(c, errno.NewBizError(errno.ErrUnauthorized, err))
			return
		}

		c.Set("operator", claims.Operator)
		c.Request = c.Request.WithContext(logger.WithFields(c.Request.Context(), map[string]interface{}{
			"operator": claims.Operator,
		}))
		c.Next()
	}
}

// ParseAdminToken 解析并校验管理令牌
func ParseAdminToken(tokenString, secret, issuer string) (*AdminClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != adminRole {
		return nil, errors.New("admin role required")
	}
	return claims, nil
}

// SignAdminToken 签发管理令牌，运维命令行使用
func SignAdminToken(secret, issuer, operator string, claims jwt.RegisteredClaims) (string, error) {
	if issuer != "" {
		claims.Issuer = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Operator:         operator,
		Role:             adminRole,
		RegisteredClaims: claims,
	})
	return token.SignedString([]byte(secret))
}
