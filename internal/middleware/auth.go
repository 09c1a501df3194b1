package middleware

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/hogar/internal/auth"
	"github.com/mmynk/hogar/internal/identity"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// identityKey is the context key for the authenticated identity.
const identityKey contextKey = "identity"

// WithIdentity returns a context carrying user.
func WithIdentity(ctx context.Context, user identity.User) context.Context {
	return context.WithValue(ctx, identityKey, user)
}

// GetIdentity extracts the authenticated identity from the context.
func GetIdentity(ctx context.Context) (identity.User, bool) {
	user, ok := ctx.Value(identityKey).(identity.User)
	return user, ok && user.UID != ""
}

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	user, _ := GetIdentity(ctx)
	return user.UID
}

// GetEmail extracts the user email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	user, _ := GetIdentity(ctx)
	return user.Email
}

// authInterceptor validates bearer tokens on unary and server-streaming calls.
type authInterceptor struct {
	jwtManager *auth.JWTManager
	required   bool
}

// RequireAuth returns an interceptor that rejects calls without a valid token and adds
// the caller's identity to the context.
func RequireAuth(jwtManager *auth.JWTManager) connect.Interceptor {
	return &authInterceptor{jwtManager: jwtManager, required: true}
}

// OptionalAuth returns an interceptor that adds the caller's identity when a valid token
// is present and lets every call through.
func OptionalAuth(jwtManager *auth.JWTManager) connect.Interceptor {
	return &authInterceptor{jwtManager: jwtManager}
}

func (i *authInterceptor) authenticate(ctx context.Context, header http.Header) (context.Context, error) {
	authHeader := header.Get("Authorization")
	if authHeader == "" {
		if i.required {
			return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
		}
		return ctx, nil
	}

	// Parse Bearer token
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		if i.required {
			return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
		}
		return ctx, nil
	}

	claims, err := i.jwtManager.Validate(parts[1])
	if err != nil {
		if i.required {
			return nil, connect.NewError(connect.CodeUnauthenticated, err)
		}
		return ctx, nil
	}

	return WithIdentity(ctx, claims.Identity()), nil
}

func (i *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		ctx, err := i.authenticate(ctx, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, err := i.authenticate(ctx, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

// BearerToken returns a client interceptor that sends token on every call.
func BearerToken(token string) connect.Interceptor {
	return bearerInterceptor(token)
}

type bearerInterceptor string

func (b bearerInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			req.Header().Set("Authorization", "Bearer "+string(b))
		}
		return next(ctx, req)
	}
}

func (b bearerInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set("Authorization", "Bearer "+string(b))
		return conn
	}
}

func (b bearerInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
