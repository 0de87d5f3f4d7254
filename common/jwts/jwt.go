package jwts

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims 重连令牌载荷，只携带用户标识
type CustomClaims struct {
	UserID string `json:"userID"`
	jwt.RegisteredClaims
}

func GetToken(claims *CustomClaims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// TokenFor 为用户签发重连令牌，expireDays 不合法时按 7 天
func TokenFor(userID, secret string, expireDays int) (string, error) {
	if expireDays <= 0 {
		expireDays = 7
	}
	now := time.Now()
	return GetToken(&CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireDays) * 24 * time.Hour)),
		},
	}, secret)
}

// ParseToken 校验 token 并返回其中的 userID
func ParseToken(token, secret string) (string, error) {
	parse, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return "", err
	}

	if claims, ok := parse.Claims.(jwt.MapClaims); ok && parse.Valid {
		return fmt.Sprintf("%v", claims["userID"]), nil
	}

	return "", errors.New("token not valid")
}
