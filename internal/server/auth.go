package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/engine/auth"
	"taskboard/internal/repo"
)

type AuthConfig struct {
	JWTSecret              string
	DevLogin               bool
	AllowLegacyActorHeader bool
}

const devTokenTTL = 12 * time.Hour

func principalFromRequest(ctx context.Context) (auth.Principal, huma.StatusError) {
	if p, ok := auth.FromContext(ctx); ok {
		return p, nil
	}
	return auth.Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Role  string `json:"role,omitempty"`
	OrgID string `json:"org_id,omitempty"`
}

func authenticateJWT(token string, secret string) (auth.Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return auth.Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return auth.Principal{}, err
	}
	if !parsed.Valid {
		return auth.Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return auth.Principal{}, errors.New("subject claim required")
	}
	return auth.Principal{
		UserID: claims.Subject,
		Role:   claims.Role,
		OrgID:  claims.OrgID,
	}, nil
}

// signDevToken mints an HS256 token carrying the same claims authenticateJWT
// reads back.
func signDevToken(secret, userID, orgID, role string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(devTokenTTL)),
		},
		Role:  role,
		OrgID: orgID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func authenticateAPIKey(ctx context.Context, r repo.Repo, key string) (auth.Principal, error) {
	if strings.TrimSpace(key) == "" {
		return auth.Principal{}, errors.New("api key required")
	}
	apiKey, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return auth.Principal{}, err
	}
	if apiKey.UserID == "" {
		return auth.Principal{}, errors.New("api key missing user")
	}
	return auth.Principal{UserID: apiKey.UserID, Role: apiKey.Role}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "openapi.json"):   true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if open[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))
			legacyActor := strings.TrimSpace(req.Header.Get("X-Actor-Id"))

			var (
				principal auth.Principal
				err       error
			)
			switch {
			case authz != "":
				token, ok := bearerToken(authz)
				if !ok {
					err = errors.New("malformed authorization header")
					break
				}
				principal, err = authenticateJWT(token, cfg.JWTSecret)
			case apiKeyHeader != "":
				principal, err = authenticateAPIKey(req.Context(), r, apiKeyHeader)
			case legacyActor != "" && cfg.AllowLegacyActorHeader:
				log.WithField("user_id", legacyActor).Warn("using legacy X-Actor-Id header without credentials")
				principal = auth.Principal{UserID: legacyActor}
			default:
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			if err != nil {
				log.WithError(err).WithField("path", req.URL.Path).Debug("rejected credentials")
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
