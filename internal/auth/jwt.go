// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/bbigmic/dziennik-pracy/internal/config"
	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

const (
	claimRole         = "role"
	claimTokenVersion = "token_version"
	claimType         = "type"
	claimSession      = "sid"
	tokenTypeAccess   = "access"
	refreshTokenBytes = 32
)

// Signer issues ES256 access tokens and opaque refresh tokens, and serves
// the public half of its key as a JWKS.
type Signer struct {
	private jwk.Key
	public  jwk.Key
	jwks    jwk.Set
	cfg     config.JWTConfig
	now     func() time.Time
}

func NewSigner(cfg config.JWTConfig) (*Signer, error) {
	pemBytes, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	private, err := jwk.ParseKey(pemBytes, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	if err := annotate(private, uuid.NewString()[:8]); err != nil {
		return nil, err
	}

	public, err := private.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	if err := public.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	jwks := jwk.NewSet()
	if err := jwks.AddKey(public); err != nil {
		return nil, fmt.Errorf("add key to set: %w", err)
	}

	return &Signer{
		private: private,
		public:  public,
		jwks:    jwks,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

func annotate(key jwk.Key, keyID string) error {
	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return fmt.Errorf("set key id: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return fmt.Errorf("set algorithm: %w", err)
	}
	return nil
}

// WriteKeyPair creates a fresh P-256 key and stores it as PEM files.
func WriteKeyPair(privatePath, publicPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}
	if err := annotate(private, uuid.NewString()[:8]); err != nil {
		return err
	}

	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	for _, out := range []struct {
		key  jwk.Key
		path string
		perm os.FileMode
	}{
		{private, privatePath, 0o600},
		{public, publicPath, 0o644},
	} {
		pemBytes, err := jwk.Pem(out.key)
		if err != nil {
			return fmt.Errorf("encode %s: %w", out.path, err)
		}
		if err := os.WriteFile(out.path, pemBytes, out.perm); err != nil {
			return fmt.Errorf("write %s: %w", out.path, err)
		}
	}

	return nil
}

// IssueAccess signs a short-lived token carrying the user's role, the
// session it belongs to and the token version it was minted under.
func (s *Signer) IssueAccess(user *UserInfo, sessionID string) (string, error) {
	now := s.now()

	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(s.cfg.Issuer).
		Audience([]string{s.cfg.Audience}).
		Subject(user.ID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(s.cfg.AccessTokenExpire)).
		Claim(claimRole, user.Role).
		Claim(claimTokenVersion, user.TokenVersion).
		Claim(claimType, tokenTypeAccess).
		Claim(claimSession, sessionID).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), s.private))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks signature, issuer, audience and lifetime. Expiry is reported
// separately from other failures so clients know to refresh.
func (s *Signer) Verify(_ context.Context, raw string) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.ES256(), s.public),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", core.ErrTokenInvalid)
	}

	now := s.now()
	if exp, ok := token.Expiration(); ok && !now.Before(exp) {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
	}

	if err := jwt.Validate(token,
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
	); err != nil {
		return nil, fmt.Errorf("validate token: %w", core.ErrTokenInvalid)
	}

	var kind, role string
	var version float64
	if token.Get(claimType, &kind) != nil || kind != tokenTypeAccess {
		return nil, fmt.Errorf("verify token: wrong type: %w", core.ErrTokenInvalid)
	}
	if token.Get(claimRole, &role) != nil {
		return nil, fmt.Errorf("verify token: missing role: %w", core.ErrTokenInvalid)
	}
	if token.Get(claimTokenVersion, &version) != nil {
		return nil, fmt.Errorf("verify token: missing version: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("verify token: missing subject: %w", core.ErrTokenInvalid)
	}

	var sessionID string
	_ = token.Get(claimSession, &sessionID) //nolint:errcheck // optional claim

	jti, _ := token.JwtID()
	exp, _ := token.Expiration()

	return &middleware.AccessTokenClaims{
		UserID:       subject,
		Role:         role,
		TokenVersion: int(version),
		SessionID:    sessionID,
		JTI:          jti,
		ExpiresAt:    exp,
	}, nil
}

// refreshToken is the opaque value handed to the client. Only Hash is
// stored.
type refreshToken struct {
	Value     string
	Hash      string
	ExpiresAt time.Time
}

func (s *Signer) newRefreshToken() (refreshToken, error) {
	value, err := core.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return refreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}

	return refreshToken{
		Value:     value,
		Hash:      core.HashToken(value),
		ExpiresAt: s.now().Add(s.cfg.RefreshTokenExpire),
	}, nil
}

func (s *Signer) AccessTTL() time.Duration {
	return s.cfg.AccessTokenExpire
}

func (s *Signer) KeyID() string {
	var kid string
	_ = s.private.Get(jwk.KeyIDKey, &kid) //nolint:errcheck // set in NewSigner
	return kid
}

func (s *Signer) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(s.jwks); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
