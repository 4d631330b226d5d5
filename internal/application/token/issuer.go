// Package token issues and consumes the one-time upload tokens that gate
// payment-receipt file submissions.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/buildflow/procurement/internal/application/port"
	appwf "github.com/buildflow/procurement/internal/application/workflow"
	"github.com/buildflow/procurement/internal/domain/entity"
	domainwf "github.com/buildflow/procurement/internal/domain/workflow"
)

// tokenBytes gives 256 bits of entropy, hex-encoded to 64 characters
const tokenBytes = 32

// DefaultMaxAttempts bounds brute-force attempts per token
const DefaultMaxAttempts = 3

var (
	// ErrInvalidToken is returned when no receipt carries the token
	ErrInvalidToken = errors.New("invalid upload token")

	// ErrTokenUsed is returned when the token was already consumed. A token
	// is consumable exactly once, regardless of expiry.
	ErrTokenUsed = errors.New("upload link has already been used")

	// ErrTokenExpired is returned when the token is past its expiry
	ErrTokenExpired = errors.New("upload link has expired")

	// ErrTooManyAttempts is returned once the attempt counter passes the
	// configured maximum, even for an otherwise valid token
	ErrTooManyAttempts = errors.New("too many upload attempts for this link")
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Issuer mints high-entropy one-time upload tokens and evaluates consume
// attempts in a strict order: exists, unused, unexpired, under the attempt
// bound, and still awaiting upload.
type Issuer struct {
	receipts    port.PaymentReceiptRepository
	engine      appwf.Engine
	maxAttempts int
	logger      Logger
	now         func() time.Time
}

// IssuerOption configures the issuer
type IssuerOption func(*Issuer)

// WithMaxAttempts overrides the attempt bound
func WithMaxAttempts(n int) IssuerOption {
	return func(i *Issuer) {
		if n > 0 {
			i.maxAttempts = n
		}
	}
}

// WithLogger sets a logger
func WithLogger(logger Logger) IssuerOption {
	return func(i *Issuer) {
		i.logger = logger
	}
}

// WithClock overrides the issuer clock, for tests
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates a token issuer. The engine is used to lazily expire
// receipts whose token turned out to be stale on consume.
func NewIssuer(receipts port.PaymentReceiptRepository, engine appwf.Engine, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		receipts:    receipts,
		engine:      engine,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// MaxAttempts returns the configured attempt bound
func (i *Issuer) MaxAttempts() int {
	return i.maxAttempts
}

// Mint generates a fresh token and its expiry. Pure generation: the caller
// persists the pair when creating the receipt, under a unique index.
func (i *Issuer) Mint(ttl time.Duration) (token string, expiresAt time.Time, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), i.now().Add(ttl), nil
}

// Consume evaluates one upload attempt against the token. The attempt
// counter is bumped first, atomically, on every call — success or failure —
// so the bound holds under concurrency. Consume does not itself mark the
// token used: that flag flips inside the same conditional update as the
// transition to uploaded, which is what makes consumption exactly-once.
func (i *Issuer) Consume(ctx context.Context, tok string) (*entity.PaymentReceipt, error) {
	found, err := i.receipts.IncrementAttempts(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("increment attempts: %w", err)
	}
	if !found {
		return nil, ErrInvalidToken
	}

	receipt, err := i.receipts.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if receipt.IsTokenUsed {
		return nil, ErrTokenUsed
	}

	if receipt.TokenExpired(i.now()) {
		i.expireLazily(ctx, receipt)
		return nil, ErrTokenExpired
	}

	if receipt.UploadAttempts > i.maxAttempts {
		return nil, ErrTooManyAttempts
	}

	switch receipt.Status {
	case entity.ReceiptStatusAwaitingUpload:
		return receipt, nil
	case entity.ReceiptStatusExpired:
		return nil, ErrTokenExpired
	default:
		return nil, ErrTokenUsed
	}
}

// expireLazily flips a stale awaiting receipt to expired. Best effort: a
// concurrent expiry losing the race is fine.
func (i *Issuer) expireLazily(ctx context.Context, receipt *entity.PaymentReceipt) {
	if i.engine == nil || receipt.Status != entity.ReceiptStatusAwaitingUpload {
		return
	}

	_, err := i.engine.AttemptTransition(
		ctx,
		domainwf.EntityPaymentReceipt,
		receipt.ID,
		domainwf.ActionExpire,
		appwf.Actor{ID: "token-issuer", Role: domainwf.RoleSystem},
	)
	if err != nil && !errors.Is(err, appwf.ErrConflict) && i.logger != nil {
		i.logger.Error("Failed to expire stale receipt",
			"receipt_id", receipt.ID,
			"error", err,
		)
	}
}
