package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/labeltrack-backend/api/responses"
	pkgAuth "github.com/angelmondragon/labeltrack-backend/pkg/auth"
	"github.com/angelmondragon/labeltrack-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labeltrack-backend/pkg/errors"
	"github.com/angelmondragon/labeltrack-backend/pkg/logger"
)

const deviceIDHeader = "X-Device-Id"

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			deviceID := claims.DeviceID
			if header := strings.TrimSpace(r.Header.Get(deviceIDHeader)); header != "" {
				deviceID = header
			}

			ctx := WithUserID(r.Context(), claims.UserID.String())
			ctx = WithRole(ctx, string(claims.Role))
			if deviceID != "" {
				ctx = WithDeviceID(ctx, deviceID)
			}

			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithActorRole(ctx, string(claims.Role))
				if deviceID != "" {
					ctx = logg.WithDeviceID(ctx, deviceID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
