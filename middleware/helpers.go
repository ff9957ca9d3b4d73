package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/tournament-live/models"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Имена JWT claims
const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
	jwtClaimTeamID = "team_id"
)

var ErrPrincipalMissing = errors.New("principal not found in context")

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func GetPrincipalFromContext(ctx context.Context) (models.Principal, error) {
	p, ok := ctx.Value(principalContextKey).(models.Principal)
	if !ok {
		return models.Principal{}, ErrPrincipalMissing
	}
	return p, nil
}

// claimInt читает числовой claim: JSON-числа приходят как float64, но допускаем и строку.
func claimInt(claims jwt.MapClaims, name string) (int, bool, error) {
	raw, ok := claims[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, true, fmt.Errorf("'%s' claim is not an integer: %f", name, v)
		}
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, true, fmt.Errorf("invalid '%s' claim %q: %w", name, v, err)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("invalid type for '%s' claim: expected float64 or string, got %T", name, raw)
	}
}

func principalFromClaims(claims jwt.MapClaims) (models.Principal, error) {
	userID, ok, err := claimInt(claims, jwtClaimUserID)
	if err != nil {
		return models.Principal{}, err
	}
	if !ok {
		return models.Principal{}, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}
	if userID <= 0 {
		return models.Principal{}, fmt.Errorf("invalid user ID value in '%s' claim: %d", jwtClaimUserID, userID)
	}

	roleStr, ok := claims[jwtClaimRole].(string)
	if !ok {
		return models.Principal{}, fmt.Errorf("missing or invalid '%s' claim in token", jwtClaimRole)
	}
	role := models.Role(roleStr)
	if !role.IsValid() {
		return models.Principal{}, fmt.Errorf("invalid role value in claim: %q", roleStr)
	}

	p := models.Principal{ID: userID, Role: role}
	teamID, ok, err := claimInt(claims, jwtClaimTeamID)
	if err != nil {
		return models.Principal{}, err
	}
	if ok && teamID > 0 {
		p.TeamID = &teamID
	}
	return p, nil
}
