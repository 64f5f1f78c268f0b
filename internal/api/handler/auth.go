package handler

import (
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/config"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	issuer        = "matchchat-service"
	telegramClaim = "telegram_id"
	userKey       = "telegram_id"
)

var errUnauthorized = errors.New("authorization token missing or invalid")

// Auth issues and verifies bearer tokens carrying a Telegram id.
type Auth struct {
	secret []byte
	ttl    time.Duration
}

func NewAuth(cfg config.JWTConfig) *Auth {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Auth{secret: []byte(cfg.Secret), ttl: ttl}
}

// Issue mints a token for telegramID.
func (a *Auth) Issue(telegramID string) (string, error) {
	claims := jwt.MapClaims{
		telegramClaim: telegramID,
		"exp":         time.Now().Add(a.ttl).Unix(),
		"iss":         issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse validates a token and returns its Telegram id.
func (a *Auth) Parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Wrap(err, "parse token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errUnauthorized
	}
	id, _ := claims[telegramClaim].(string)
	if id == "" {
		return "", errUnauthorized
	}
	return id, nil
}

// Middleware accepts "Authorization: Bearer <token>" or, for WebSocket
// upgrades from browsers, a "token" query parameter.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenString = strings.TrimPrefix(header, "Bearer ")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.Result[any]{Message: errUnauthorized.Error(), Errors: []string{"unauthorized"}})
			return
		}
		id, err := a.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.Result[any]{Message: errUnauthorized.Error(), Errors: []string{"unauthorized"}})
			return
		}
		c.Set(userKey, id)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userKey)
}
