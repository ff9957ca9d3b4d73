package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/tournament-live/models"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenAuth проверяет HS256-токены и извлекает из них участника.
type TokenAuth struct {
	secret []byte
	logger *slog.Logger
}

func NewTokenAuth(secret string, logger *slog.Logger) *TokenAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenAuth{secret: []byte(secret), logger: logger}
}

// Resolve разбирает токен и возвращает пользователя.
func (a *TokenAuth) Resolve(tokenString string) (models.Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	p, err := principalFromClaims(claims)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return p, nil
}

// Sign issues a token for the principal. Используется в тестах и утилитах.
func (a *TokenAuth) Sign(p models.Principal, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims[jwtClaimUserID] = p.ID
	claims[jwtClaimRole] = string(p.Role)
	if p.TeamID != nil {
		claims[jwtClaimTeamID] = *p.TeamID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// TokenFromRequest берёт токен из заголовка Authorization, а для websocket
// (браузер не умеет ставить заголовки) из параметра ?token=.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func (a *TokenAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		p, err := a.Resolve(token)
		if err != nil {
			a.logger.Debug("Token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func Authorize(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := GetPrincipalFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if role == p.Role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
