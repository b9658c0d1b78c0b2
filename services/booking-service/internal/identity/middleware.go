package identity

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

// Gateway headers, trusted only when no token verification is configured.
const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-Role"
)

type Verifier struct {
	secret string
	jwks   *auth.JWKSClient
	logger *slog.Logger
}

// NewVerifier verifies bearer tokens with the HS256 secret and, when jwks is
// set, RS256 tokens carrying a key id. With neither configured the gateway
// headers are trusted as-is.
func NewVerifier(secret string, jwks *auth.JWKSClient, logger *slog.Logger) *Verifier {
	return &Verifier{secret: secret, jwks: jwks, logger: logger}
}

func (v *Verifier) verifying() bool {
	return v.secret != "" || v.jwks != nil
}

// Middleware resolves the caller and stores it in the request context.
// Requests without usable credentials get 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := v.resolve(r)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
	})
}

func (v *Verifier) resolve(r *http.Request) (Identity, error) {
	if !v.verifying() {
		id := Identity{
			Kind: Kind(strings.TrimSpace(r.Header.Get(HeaderRole))),
			ID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
		}
		if !id.Valid() {
			return Identity{}, errMissingIdentity
		}
		return id, nil
	}

	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return Identity{}, errMissingToken
	}

	claims, err := v.verify(r, token)
	if err != nil {
		v.logger.Debug("token rejected", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		return Identity{}, auth.ErrInvalidToken
	}
	id := Identity{Kind: Kind(claims.Role), ID: claims.Sub}
	if !id.Valid() {
		return Identity{}, errMissingIdentity
	}
	return id, nil
}

func (v *Verifier) verify(r *http.Request, token string) (*auth.Claims, error) {
	if v.jwks != nil {
		header, err := auth.ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, err := v.jwks.Get(r.Context(), header.Kid)
			if err != nil {
				return nil, err
			}
			return auth.VerifyRS256(token, pub)
		}
	}
	if v.secret == "" {
		return nil, auth.ErrInvalidToken
	}
	return auth.ParseAndVerifyHS256(token, v.secret)
}

// RateLimitKey buckets requests per caller, falling back to the client address.
func RateLimitKey(r *http.Request) string {
	if id, ok := FromContext(r.Context()); ok {
		return string(id.Kind) + ":" + id.ID
	}
	return httpx.ClientIP(r)
}
