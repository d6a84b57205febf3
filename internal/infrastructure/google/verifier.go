package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/oksasatya/fluxa/internal/domain/entity"
)

// ErrInvalidIDToken is the only error Verify returns; the cause is logged.
var ErrInvalidIDToken = errors.New("invalid google id token")

var issuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// Verifier checks Google ID tokens. Signature and key rotation are handled
// by idtoken against Google's published certificates.
type Verifier struct {
	clientID string
	timeout  time.Duration
	validate validateFunc
	now      func() time.Time
	logger   *logrus.Logger
}

func NewVerifier(ctx context.Context, clientID string, timeout time.Duration, logger *logrus.Logger, opts ...option.ClientOption) (*Verifier, error) {
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create validator: %w", err)
	}
	return newVerifier(clientID, timeout, v.Validate, logger), nil
}

func newVerifier(clientID string, timeout time.Duration, validate validateFunc, logger *logrus.Logger) *Verifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Verifier{clientID: clientID, timeout: timeout, validate: validate, now: time.Now, logger: logger}
}

func (v *Verifier) Verify(ctx context.Context, idToken string) (*entity.ExternalIdentity, error) {
	if v.clientID == "" {
		v.logger.Warn("google sign-in attempted without GOOGLE_CLIENT_ID")
		return nil, ErrInvalidIDToken
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	payload, err := v.validate(ctx, idToken, v.clientID)
	if err != nil {
		v.logger.WithError(err).Warn("google id token rejected")
		return nil, ErrInvalidIDToken
	}
	if err := v.recheck(payload); err != nil {
		v.logger.WithError(err).Warn("google id token failed local checks")
		return nil, ErrInvalidIDToken
	}

	ext := &entity.ExternalIdentity{
		Subject:       payload.Subject,
		Email:         claimString(payload.Claims, "email"),
		FirstName:     claimString(payload.Claims, "given_name"),
		LastName:      claimString(payload.Claims, "family_name"),
		AvatarURL:     claimString(payload.Claims, "picture"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
	}
	if ext.Subject == "" || ext.Email == "" {
		v.logger.Warn("google id token without subject or email")
		return nil, ErrInvalidIDToken
	}
	return ext, nil
}

// recheck repeats the issuer, expiry and audience checks on the payload.
func (v *Verifier) recheck(p *idtoken.Payload) error {
	if p == nil {
		return errors.New("empty payload")
	}
	if !issuers[p.Issuer] {
		return fmt.Errorf("unexpected issuer %q", p.Issuer)
	}
	if p.Expires <= v.now().Unix() {
		return errors.New("token expired")
	}
	if p.Audience != v.clientID {
		return errors.New("audience mismatch")
	}
	return nil
}

func claimString(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// email_verified arrives as a bool, or as the string "true" on older tokens.
func claimBool(claims map[string]interface{}, key string) bool {
	switch x := claims[key].(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(x, "true")
	}
	return false
}
