package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	authService "github.com/allisson/identity/internal/auth/service"
	"github.com/allisson/identity/internal/config"
	"github.com/allisson/identity/internal/database"
	"github.com/allisson/identity/internal/mailer"
	"github.com/allisson/identity/internal/metrics"
)

// twoFactorUseCase implements TwoFactorUseCase with one challenge row per user.
type twoFactorUseCase struct {
	config        *config.Config
	txManager     database.TxManager
	userRepo      UserRepository
	twoFactorRepo TwoFactorTokenRepository
	tokenService  authService.TokenService
	mailer        Mailer
	metrics       metrics.BusinessMetrics
	logger        *slog.Logger
	now           func() time.Time
}

// Issue generates a fresh code for the user, replaces any pending challenge, and
// emails the code.
//
// The user row lock, the delete of the prior challenge, the insert and the send
// run in one transaction. Two concurrent logins therefore leave exactly one
// pending challenge, and a failed send leaves the previous state untouched.
func (t *twoFactorUseCase) Issue(ctx context.Context, user *authDomain.User) (string, error) {
	code, err := t.tokenService.GenerateChallengeCode()
	if err != nil {
		return "", err
	}

	now := t.now()
	challenge := &authDomain.TwoFactorToken{
		ID:        uuid.Must(uuid.NewV7()),
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: now.Add(t.config.TwoFactorExpiration),
		CreatedAt: now,
	}

	msg, err := mailer.ChallengeMessage(user.Email, code, t.config.TwoFactorExpiration)
	if err != nil {
		return "", err
	}

	err = t.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := t.userRepo.Lock(ctx, user.ID); err != nil {
			return err
		}
		if err := t.twoFactorRepo.DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}
		if err := t.twoFactorRepo.Create(ctx, challenge); err != nil {
			return err
		}
		return deliver(ctx, t.mailer, t.config.EmailSendTimeout, msg)
	})
	if err != nil {
		return "", err
	}

	t.metrics.RecordChallenge(ctx, metrics.ChallengeIssued)
	t.logger.Info("two-factor challenge issued", slog.Int64("user_id", user.ID))
	return code, nil
}

// Verify consumes the user's challenge when code matches it exactly.
//
// A wrong code leaves the challenge pending but counts against it; once
// TwoFactorMaxAttempts wrong codes have been submitted the challenge is
// deleted and the user has to log in again.
func (t *twoFactorUseCase) Verify(ctx context.Context, userID int64, code string) error {
	challenge, err := t.twoFactorRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, authDomain.ErrTwoFactorTokenNotFound) {
			t.metrics.RecordChallenge(ctx, metrics.ChallengeMissing)
			return authDomain.ErrChallengeNotFound
		}
		return err
	}

	if challenge.IsExpired(t.now()) {
		if _, err := t.twoFactorRepo.Delete(ctx, challenge.ID); err != nil {
			return err
		}
		t.metrics.RecordChallenge(ctx, metrics.ChallengeExpired)
		return authDomain.ErrChallengeExpired
	}

	if challenge.Attempts >= t.config.TwoFactorMaxAttempts {
		return t.discard(ctx, challenge)
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		return t.recordFailure(ctx, challenge)
	}

	// Only the caller whose delete removed the row wins a concurrent race.
	deleted, err := t.twoFactorRepo.Delete(ctx, challenge.ID)
	if err != nil {
		return err
	}
	if !deleted {
		t.metrics.RecordChallenge(ctx, metrics.ChallengeMissing)
		return authDomain.ErrChallengeNotFound
	}
	t.metrics.RecordChallenge(ctx, metrics.ChallengeVerified)
	return nil
}

// recordFailure counts a wrong code and discards the challenge when the count
// reaches the limit. The caller always sees ErrChallengeNotFound.
func (t *twoFactorUseCase) recordFailure(ctx context.Context, challenge *authDomain.TwoFactorToken) error {
	exhausted := false
	err := t.txManager.WithTx(ctx, func(ctx context.Context) error {
		attempts, err := t.twoFactorRepo.RecordFailure(ctx, challenge.ID)
		if err != nil {
			if errors.Is(err, authDomain.ErrTwoFactorTokenNotFound) {
				return nil
			}
			return err
		}
		if attempts < t.config.TwoFactorMaxAttempts {
			return nil
		}
		exhausted = true
		_, err = t.twoFactorRepo.Delete(ctx, challenge.ID)
		return err
	})
	if err != nil {
		return err
	}

	if exhausted {
		t.metrics.RecordChallenge(ctx, metrics.ChallengeExhausted)
		t.logger.Warn("two-factor challenge discarded after too many wrong codes",
			slog.Int64("user_id", challenge.UserID))
	} else {
		t.metrics.RecordChallenge(ctx, metrics.ChallengeMismatch)
	}
	return authDomain.ErrChallengeNotFound
}

// discard removes a challenge that already used up its attempts.
func (t *twoFactorUseCase) discard(ctx context.Context, challenge *authDomain.TwoFactorToken) error {
	if _, err := t.twoFactorRepo.Delete(ctx, challenge.ID); err != nil {
		return err
	}
	t.metrics.RecordChallenge(ctx, metrics.ChallengeExhausted)
	return authDomain.ErrChallengeNotFound
}

// deliver sends msg within timeout and reports any failure as ErrDeliveryFailed.
func deliver(ctx context.Context, m Mailer, timeout time.Duration, msg mailer.Message) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := m.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", authDomain.ErrDeliveryFailed, err)
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// NewTwoFactorUseCase creates a new TwoFactorUseCase with the provided dependencies.
func NewTwoFactorUseCase(
	cfg *config.Config,
	txManager database.TxManager,
	userRepo UserRepository,
	twoFactorRepo TwoFactorTokenRepository,
	tokenService authService.TokenService,
	mailer Mailer,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) TwoFactorUseCase {
	return &twoFactorUseCase{
		config:        cfg,
		txManager:     txManager,
		userRepo:      userRepo,
		twoFactorRepo: twoFactorRepo,
		tokenService:  tokenService,
		mailer:        mailer,
		metrics:       businessMetrics,
		logger:        logger,
		now:           utcNow,
	}
}
