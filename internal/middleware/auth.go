package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenVerifier is the slice of the identity provider the middleware needs.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthMiddleware resolves the caller's identity from a Firebase ID token.
// The core never reads ambient identity state: handlers receive the
// resolved Identity through the request context.
type AuthMiddleware struct {
	verifier TokenVerifier
	Logger   *logrus.Logger
}

func NewAuthMiddleware(credentialsPath string, logger *logrus.Logger) (*AuthMiddleware, error) {
	ctx := context.Background()

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Auth client: %w", err)
	}

	return &AuthMiddleware{verifier: client, Logger: logger}, nil
}

// RequireIdentity rejects unauthenticated requests and stores the resolved
// identity in the request context for downstream handlers.
func (am *AuthMiddleware) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		rawToken := strings.TrimPrefix(header, "Bearer ")
		if header == "" || rawToken == header {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		token, err := am.verifier.VerifyIDToken(r.Context(), rawToken)
		if err != nil {
			am.Logger.WithError(err).Warn("Token verification failed")
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		identity := domain.Identity{UserID: token.UID}
		if name, ok := token.Claims["name"].(string); ok {
			identity.DisplayName = name
		}
		if role, ok := token.Claims["role"].(string); ok {
			identity.Role = domain.Role(role)
		}
		if !identity.Role.Valid() {
			am.Logger.WithFields(logrus.Fields{
				"UserId": identity.UserID,
				"Role":   identity.Role,
			}).Warn("Token carries no usable role claim")
			http.Error(w, "unknown role", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ContextWithIdentity stores an already-resolved identity, used where a
// request enters outside the HTTP middleware chain.
func ContextWithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
