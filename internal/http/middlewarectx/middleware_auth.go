// Package middlewarectx содержит HTTP middleware авторизации.
//
// Защищенный маршрут проходит три шага строго по порядку: Authenticate
// (cookie jwt совпадает с заголовком Authorization, токен сессии валиден,
// пользователь существует), CheckBlacklist (токен не отозван) и
// RequireRoles (роль входит в разрешенный набор). Guard.Protect собирает
// эту цепочку. В контекст запроса кладется только models.Identity.
package middlewarectx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/lib/jwt"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// SessionCookie имя cookie с токеном сессии.
const SessionCookie = "jwt"

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// IdentityKey ключ субъекта запроса.
	IdentityKey Key = "identity"
	// TokenKey ключ предъявленного токена сессии.
	TokenKey Key = "token"
)

// TokenParser проверяет токен сессии.
type TokenParser interface {
	ParseSessionToken(token string) (*jwt.SessionClaims, error)
}

// IdentityResolver находит субъекта по идентификатору из токена.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID string) (models.Identity, error)
}

// Blacklist хранилище отозванных токенов.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, userID, token string) (bool, error)
}

// Guard middleware авторизации защищенных маршрутов.
type Guard struct {
	log       *slog.Logger
	tokens    TokenParser
	users     IdentityResolver
	blacklist Blacklist
}

// NewGuard создает Guard.
func NewGuard(log *slog.Logger, tokens TokenParser, users IdentityResolver, blacklist Blacklist) *Guard {
	return &Guard{log: log, tokens: tokens, users: users, blacklist: blacklist}
}

var errInvalidAuthorization = apperr.E(apperr.Unauthorized, "Invalid authorization", nil)

// Protect возвращает цепочку Authenticate, CheckBlacklist, RequireRoles.
func (g *Guard) Protect(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.Authenticate(g.CheckBlacklist(g.RequireRoles(roles...)(next)))
	}
}

// Authenticate проверяет токен сессии и кладет в контекст субъекта и токен.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "middlewarectx.Authenticate"
		log := g.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := submittedToken(r)
		if !ok {
			response.Fail(w, r, log, errInvalidAuthorization)
			return
		}

		claims, err := g.tokens.ParseSessionToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrSigningFailure) {
				response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
				return
			}
			response.Fail(w, r, log, apperr.E(apperr.Unauthorized, "Invalid token", err))
			return
		}

		identity, err := g.users.ResolveIdentity(r.Context(), claims.UserID)
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityKey, identity)
		ctx = context.WithValue(ctx, TokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CheckBlacklist отклоняет отозванные токены. Требует Authenticate.
func (g *Guard) CheckBlacklist(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "middlewarectx.CheckBlacklist"
		log := g.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			response.Fail(w, r, log, errInvalidAuthorization)
			return
		}
		token, ok := submittedToken(r)
		if !ok {
			response.Fail(w, r, log, errInvalidAuthorization)
			return
		}

		revoked, err := g.blacklist.IsBlacklisted(r.Context(), identity.ID, token)
		if err != nil {
			response.Fail(w, r, log, fmt.Errorf("%s: %w", op, err))
			return
		}
		if revoked {
			response.Fail(w, r, log, errInvalidAuthorization)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles пропускает только субъектов с одной из ролей.
func (g *Guard) RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireRoles"
			log := g.log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				response.Fail(w, r, log, errInvalidAuthorization)
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Fail(w, r, log, apperr.E(apperr.Forbidden, "You don't have the roles to access", nil))
		})
	}
}

// IdentityFromContext возвращает субъекта, установленного Authenticate.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(models.Identity)
	return identity, ok
}

// TokenFromContext возвращает токен сессии текущего запроса.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok && token != ""
}

// submittedToken возвращает токен, если cookie и заголовок Authorization
// переданы оба и совпадают.
func submittedToken(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	header, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || header == "" {
		return "", false
	}
	if header != cookie.Value {
		return "", false
	}
	return header, true
}
