package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/metrics"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

// OTPExpiry is how long e-mail, phone and login codes stay valid.
const OTPExpiry = 15 * time.Minute

// IssueMode selects what happens when an unexpired code already exists.
type IssueMode int

const (
	// IssueRejectIfActive fails with ErrCodeAlreadySent. Used by register and login resends.
	IssueRejectIfActive IssueMode = iota
	// IssueReplace deletes the old code and issues a new one. Used by explicit send requests and 2FA.
	IssueReplace
)

// VerificationService issues and consumes one-time codes and reset tokens.
type VerificationService interface {
	Issue(ctx context.Context, userID uuid.UUID, purpose model.VerificationPurpose, mode IssueMode) (string, error)
	Consume(ctx context.Context, userID uuid.UUID, purpose model.VerificationPurpose, token string) error
}

type verificationService struct {
	repo       repository.VerificationRepository
	jwtService *auth.JWTService
	logger     *zap.Logger
	metrics    metrics.Recorder
	now        func() time.Time
}

// NewVerificationService creates a verification service.
func NewVerificationService(repo repository.VerificationRepository, jwtService *auth.JWTService, logger *zap.Logger, rec metrics.Recorder) VerificationService {
	return &verificationService{
		repo:       repo,
		jwtService: jwtService,
		logger:     orNop(logger).Named("verification"),
		metrics:    orNoop(rec),
		now:        time.Now,
	}
}

func (s *verificationService) Issue(ctx context.Context, userID uuid.UUID, purpose model.VerificationPurpose, mode IssueMode) (string, error) {
	now := s.now()

	switch mode {
	case IssueReplace:
		if err := s.repo.DeleteFor(ctx, userID, purpose); err != nil {
			return "", fmt.Errorf("delete previous code: %w", err)
		}
	default:
		existing, err := s.repo.Find(ctx, userID, purpose)
		switch {
		case err == nil && !existing.Expired(now):
			return "", apperrors.ErrCodeAlreadySent
		case err == nil:
			if _, err := s.repo.Delete(ctx, existing.ID); err != nil {
				return "", fmt.Errorf("delete expired code: %w", err)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return "", fmt.Errorf("find code: %w", err)
		}
	}

	token, ttl, err := s.generate(userID, purpose)
	if err != nil {
		return "", err
	}

	v := &model.Verification{
		UserID:    userID,
		Purpose:   purpose,
		Token:     token,
		ExpiresAt: now.Add(ttl).UTC(),
	}
	if err := s.repo.Create(ctx, v); err != nil {
		if isDuplicate(err) {
			// a concurrent request issued one first
			return "", apperrors.ErrCodeAlreadySent
		}
		return "", fmt.Errorf("store code: %w", err)
	}

	s.metrics.RecordVerificationIssued(string(purpose))
	return token, nil
}

func (s *verificationService) generate(userID uuid.UUID, purpose model.VerificationPurpose) (string, time.Duration, error) {
	if purpose == model.PurposeResetPassword {
		token, err := s.jwtService.GenerateResetToken(userID)
		if err != nil {
			return "", 0, fmt.Errorf("generate reset token: %w", err)
		}
		return token, auth.ResetPasswordExpiry, nil
	}
	code, err := generateOTP()
	if err != nil {
		return "", 0, err
	}
	return code, OTPExpiry, nil
}

// Consume checks token against the stored code and deletes it. Only one caller can
// consume a given code: the delete must remove exactly one row.
func (s *verificationService) Consume(ctx context.Context, userID uuid.UUID, purpose model.VerificationPurpose, token string) error {
	v, err := s.repo.Find(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.consumed(purpose, "missing")
			return apperrors.ErrInvalidCode
		}
		return fmt.Errorf("find code: %w", err)
	}

	if v.Expired(s.now()) {
		if _, err := s.repo.Delete(ctx, v.ID); err != nil {
			s.logger.Warn("failed to delete expired code", zap.Error(err))
		}
		s.consumed(purpose, "expired")
		return apperrors.ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(v.Token), []byte(token)) != 1 {
		s.consumed(purpose, "mismatch")
		return apperrors.ErrInvalidCode
	}

	n, err := s.repo.Delete(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if n != 1 {
		s.consumed(purpose, "raced")
		return apperrors.ErrInvalidCode
	}
	s.consumed(purpose, "ok")
	return nil
}

func (s *verificationService) consumed(purpose model.VerificationPurpose, outcome string) {
	s.metrics.RecordVerificationConsumed(string(purpose), outcome)
}

var otpMax = big.NewInt(1_000_000)

// generateOTP returns a uniformly random 6-digit code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
