package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskhub/internal/auth"
	"taskhub/internal/cache"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/notify"
	"taskhub/internal/repository"
)

// Channel is a contact channel a code can be delivered through.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

const (
	msgNotVerified         = "Account not verified. A new verification code has been sent"
	msgNotVerifiedWaitCode = "Account not verified. A verification code was already sent, please check your inbox"
)

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// RegisterResult reports the created user and whether codes were delivered.
type RegisterResult struct {
	User      *model.User
	EmailSent bool
	SMSSent   bool
}

// LoginInput identifies the account by e-mail or phone.
type LoginInput struct {
	Email    string
	Phone    string
	Password string
}

// TokenPair is an access token with its refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is exactly one of: tokens, an unverified account notice, or a 2FA challenge.
type LoginResult struct {
	Tokens *TokenPair
	User   *model.User

	Unverified bool
	Message    string

	TwoFactorRequired bool
	UserID            uuid.UUID

	EmailSent bool
	SMSSent   bool
}

// AuthService handles registration, login, verification and password recovery.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	VerifyTwoFactor(ctx context.Context, userID uuid.UUID, code string) (*TokenPair, *model.User, error)
	VerifyEmail(ctx context.Context, email, code string) error
	VerifyPhone(ctx context.Context, phone, code string) error
	SendVerification(ctx context.Context, channel Channel, identifier string, mode IssueMode) (bool, error)
	ForgotPassword(ctx context.Context, channel Channel, identifier string) (bool, error)
	ResetPassword(ctx context.Context, token, password string) error
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken, accessToken string) error
	AdminLogin(ctx context.Context, email, password string) (string, *model.Admin, error)
}

type authService struct {
	userRepo      repository.UserRepository
	adminRepo     repository.AdminRepository
	verifications VerificationService
	notifier      *notify.Notifier
	jwtService    *auth.JWTService
	tokenStore    auth.TokenStoreInterface
	profiles      profileCache
	logger        *zap.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	userRepo repository.UserRepository,
	adminRepo repository.AdminRepository,
	verifications VerificationService,
	notifier *notify.Notifier,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	cacheClient *cache.Client,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		adminRepo:     adminRepo,
		verifications: verifications,
		notifier:      notifier,
		jwtService:    jwtService,
		tokenStore:    tokenStore,
		profiles:      profileCache{client: cacheClient},
		logger:        orNop(logger).Named("auth"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and sends a code to each channel given.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := normalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)
	if email == "" && phone == "" {
		return nil, validationError("email or phone is required")
	}

	if email != "" {
		if err := s.ensureFree(ctx, s.userRepo.FindByEmail, email, apperrors.ErrEmailTaken); err != nil {
			return nil, err
		}
	}
	if phone != "" {
		if err := s.ensureFree(ctx, s.userRepo.FindByPhone, phone, apperrors.ErrPhoneTaken); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
	}
	if email != "" {
		user.Email = &email
	}
	if phone != "" {
		user.Phone = &phone
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if isDuplicate(err) {
			if email != "" {
				return nil, apperrors.ErrEmailTaken
			}
			return nil, apperrors.ErrPhoneTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	result := &RegisterResult{User: user}
	if email != "" {
		result.EmailSent, _ = s.deliverCode(ctx, user, ChannelEmail, IssueRejectIfActive)
	}
	if phone != "" {
		result.SMSSent, _ = s.deliverCode(ctx, user, ChannelPhone, IssueRejectIfActive)
	}
	return result, nil
}

func (s *authService) ensureFree(ctx context.Context, find func(context.Context, string) (*model.User, error), value string, taken error) error {
	_, err := find(ctx, value)
	if err == nil {
		return taken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check existing user: %w", err)
	}
	return nil
}

// deliverCode issues a verification code for channel and sends it. Delivery failures
// are logged and reported as false; issue failures are returned.
func (s *authService) deliverCode(ctx context.Context, user *model.User, channel Channel, mode IssueMode) (bool, error) {
	switch channel {
	case ChannelEmail:
		if user.Email == nil {
			return false, apperrors.ErrNoChannel
		}
		code, err := s.verifications.Issue(ctx, user.ID, model.PurposeEmail, mode)
		if err != nil {
			s.logIssueFailure(err, user.ID)
			return false, err
		}
		return s.notifier.VerificationEmail(ctx, *user.Email, code), nil
	case ChannelPhone:
		if user.Phone == nil {
			return false, apperrors.ErrNoChannel
		}
		code, err := s.verifications.Issue(ctx, user.ID, model.PurposePhone, mode)
		if err != nil {
			s.logIssueFailure(err, user.ID)
			return false, err
		}
		return s.notifier.VerificationSMS(ctx, *user.Phone, code), nil
	}
	return false, validationError("unknown channel %q", channel)
}

func (s *authService) logIssueFailure(err error, userID uuid.UUID) {
	if errors.Is(err, apperrors.ErrCodeAlreadySent) {
		return
	}
	s.logger.Error("failed to issue verification code", zap.Error(err), zap.Stringer("user_id", userID))
}

func (s *authService) findByIdentifier(ctx context.Context, email, phone string) (*model.User, error) {
	switch {
	case email != "":
		return s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	case phone != "":
		return s.userRepo.FindByPhone(ctx, strings.TrimSpace(phone))
	}
	return nil, gorm.ErrRecordNotFound
}

// Login checks credentials. Unverified accounts get their code resent instead of
// tokens; accounts with 2FA get a login code.
func (s *authService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.findByIdentifier(ctx, in.Email, in.Phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsVerified() {
		return s.resendForLogin(ctx, user)
	}

	if user.TwoFactorEnabled {
		res := &LoginResult{TwoFactorRequired: true, UserID: user.ID}
		code, err := s.verifications.Issue(ctx, user.ID, model.PurposeLogin2FA, IssueReplace)
		if err != nil {
			return nil, err
		}
		if user.Email != nil && user.IsEmailVerified {
			res.EmailSent = s.notifier.LoginCodeEmail(ctx, *user.Email, code)
		} else if user.Phone != nil && user.IsPhoneVerified {
			res.SMSSent = s.notifier.LoginCodeSMS(ctx, *user.Phone, code)
		}
		return res, nil
	}

	tokens, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Tokens: tokens, User: user}, nil
}

func (s *authService) resendForLogin(ctx context.Context, user *model.User) (*LoginResult, error) {
	res := &LoginResult{Unverified: true, Message: msgNotVerified}

	channel := ChannelPhone
	if user.Email != nil && *user.Email != "" {
		channel = ChannelEmail
	}
	sent, err := s.deliverCode(ctx, user, channel, IssueRejectIfActive)
	switch {
	case errors.Is(err, apperrors.ErrCodeAlreadySent):
		res.Message = msgNotVerifiedWaitCode
	case err != nil:
		return nil, err
	}
	if channel == ChannelEmail {
		res.EmailSent = sent
	} else {
		res.SMSSent = sent
	}
	return res, nil
}

func (s *authService) issueTokens(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	access, err := s.jwtService.GenerateAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	tokenID, refresh, err := s.jwtService.GenerateRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, userID.String(), s.jwtService.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *authService) VerifyTwoFactor(ctx context.Context, userID uuid.UUID, code string) (*TokenPair, *model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, notFound(err, apperrors.ErrUserNotFound)
	}
	if err := s.verifications.Consume(ctx, user.ID, model.PurposeLogin2FA, code); err != nil {
		return nil, nil, err
	}
	tokens, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return tokens, user, nil
}

func (s *authService) VerifyEmail(ctx context.Context, email, code string) error {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return notFound(err, apperrors.ErrUserNotFound)
	}
	if user.IsEmailVerified {
		return apperrors.ErrAlreadyVerified
	}
	if err := s.verifications.Consume(ctx, user.ID, model.PurposeEmail, code); err != nil {
		return err
	}
	user.IsEmailVerified = true
	return s.saveUser(ctx, user)
}

func (s *authService) VerifyPhone(ctx context.Context, phone, code string) error {
	user, err := s.userRepo.FindByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return notFound(err, apperrors.ErrUserNotFound)
	}
	if user.IsPhoneVerified {
		return apperrors.ErrAlreadyVerified
	}
	if err := s.verifications.Consume(ctx, user.ID, model.PurposePhone, code); err != nil {
		return err
	}
	user.IsPhoneVerified = true
	return s.saveUser(ctx, user)
}

func (s *authService) saveUser(ctx context.Context, user *model.User) error {
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	s.profiles.invalidate(ctx, user.ID)
	return nil
}

// SendVerification (re)sends a verification code to the given channel.
func (s *authService) SendVerification(ctx context.Context, channel Channel, identifier string, mode IssueMode) (bool, error) {
	var (
		user *model.User
		err  error
	)
	switch channel {
	case ChannelEmail:
		user, err = s.findByIdentifier(ctx, identifier, "")
		if err == nil && user.IsEmailVerified {
			return false, apperrors.ErrAlreadyVerified
		}
	case ChannelPhone:
		user, err = s.findByIdentifier(ctx, "", identifier)
		if err == nil && user.IsPhoneVerified {
			return false, apperrors.ErrAlreadyVerified
		}
	default:
		return false, validationError("unknown channel %q", channel)
	}
	if err != nil {
		return false, notFound(err, apperrors.ErrUserNotFound)
	}
	return s.deliverCode(ctx, user, channel, mode)
}

// ForgotPassword issues a reset token and sends the reset link.
func (s *authService) ForgotPassword(ctx context.Context, channel Channel, identifier string) (bool, error) {
	var (
		user *model.User
		err  error
	)
	switch channel {
	case ChannelEmail:
		user, err = s.findByIdentifier(ctx, identifier, "")
	case ChannelPhone:
		user, err = s.findByIdentifier(ctx, "", identifier)
	default:
		return false, validationError("unknown channel %q", channel)
	}
	if err != nil {
		return false, notFound(err, apperrors.ErrUserNotFound)
	}

	token, err := s.verifications.Issue(ctx, user.ID, model.PurposeResetPassword, IssueReplace)
	if err != nil {
		return false, err
	}
	if channel == ChannelEmail {
		return s.notifier.PasswordReset(ctx, *user.Email, token), nil
	}
	return s.notifier.PasswordResetSMS(ctx, *user.Phone, token), nil
}

// ResetPassword sets a new password. The token must be a live reset token that has
// not been used yet.
func (s *authService) ResetPassword(ctx context.Context, token, password string) error {
	claims, err := s.jwtService.ValidatePurpose(token, auth.PurposeResetPassword)
	if err != nil {
		return apperrors.ErrInvalidCode
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return apperrors.ErrInvalidCode
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return notFound(err, apperrors.ErrUserNotFound)
	}
	if err := s.verifications.Consume(ctx, user.ID, model.PurposeResetPassword, token); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	return s.saveUser(ctx, user)
}

// RefreshToken validates a refresh token and returns a new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidatePurpose(refreshToken, auth.PurposeRefresh)
	if err != nil || claims.ID == "" {
		return "", apperrors.ErrInvalidRefreshToken
	}

	storedUserID, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil || storedUserID != claims.UserID {
		return "", apperrors.ErrInvalidRefreshToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return "", apperrors.ErrInvalidRefreshToken
	}
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	access, err := s.jwtService.GenerateAccessToken(userID)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return access, nil
}

// Logout revokes the refresh token and, when given, blacklists the access token for
// the rest of its lifetime.
func (s *authService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
	if err != nil {
		return apperrors.ErrInvalidRefreshToken
	}
	if err := s.tokenStore.DeleteRefreshToken(ctx, tokenID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	if accessToken == "" {
		return nil
	}
	claims, err := s.jwtService.ValidateToken(accessToken)
	if err != nil || claims.ID == "" {
		// already unusable
		return nil
	}
	if err := s.tokenStore.BlacklistAccessToken(ctx, claims.ID, s.jwtService.RemainingTTL(claims)); err != nil {
		s.logger.Warn("failed to blacklist access token", zap.Error(err))
	}
	return nil
}

// AdminLogin authenticates the master admin.
func (s *authService) AdminLogin(ctx context.Context, email, password string) (string, *model.Admin, error) {
	admin, err := s.adminRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, apperrors.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperrors.ErrInvalidCredentials
	}
	token, err := s.jwtService.GenerateAdminToken(admin.ID)
	if err != nil {
		return "", nil, fmt.Errorf("generate admin token: %w", err)
	}
	return token, admin, nil
}
