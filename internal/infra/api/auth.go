package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"activity-engine/internal/config"
	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/infra/logging"
)

// ===== JWT primitives =====

type UserClaims struct {
	jwt.RegisteredClaims
}

// AuthManager mints and parses HS256 bearer tokens whose subject is the user id.
type AuthManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(cfg config.AuthConfig) *AuthManager {
	return &AuthManager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

func (a *AuthManager) Mint(userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrInvalidArgument
	}
	now := a.now()
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse returns the user id carried by tok.
func (a *AuthManager) Parse(tok string) (string, error) {
	claims := &UserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid {
		return "", fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		return strings.TrimSpace(hdr[7:])
	}
	return ""
}

// ===== Actor resolution =====

// UserLoader is the slice of the user use case the auth layer needs.
type UserLoader interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

type actorKey struct{}

func WithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the authenticated caller or the zero Actor.
func ActorFrom(ctx context.Context) model.Actor {
	a, _ := ctx.Value(actorKey{}).(model.Actor)
	return a
}

// Authenticator turns a token into an Actor snapshot of the stored user.
type Authenticator struct {
	tokens *AuthManager
	users  UserLoader
}

func NewAuthenticator(tokens *AuthManager, users UserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate matches presence.Authenticate.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (model.Actor, error) {
	if token == "" {
		return model.Actor{}, fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}
	id, err := a.tokens.Parse(token)
	if err != nil {
		return model.Actor{}, err
	}
	u, err := a.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return model.Actor{}, fmt.Errorf("%w: unknown user", domain.ErrUnauthorized)
		}
		return model.Actor{}, err
	}
	return model.ActorFromUser(u), nil
}

// RequireAuth rejects requests without a valid bearer token and stores the Actor in the context.
func (a *Authenticator) RequireAuth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := a.Authenticate(r.Context(), bearerToken(r))
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := WithActor(r.Context(), actor)
			ctx = logging.WithUserID(ctx, actor.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
