package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	// PurposeLogin marks a normal access token.
	PurposeLogin = "login"
	// PurposeRefresh marks a refresh token.
	PurposeRefresh = "refresh"
	// PurposeResetPassword marks a password reset token.
	PurposeResetPassword = "reset-password"
	// PurposeWorkspaceInvite marks a workspace invitation token.
	PurposeWorkspaceInvite = "workspace-invite"

	// RoleMasterAdmin is the role claim carried by super-admin tokens.
	RoleMasterAdmin = "master_admin"

	// ResetPasswordExpiry is how long a password reset token is valid.
	ResetPasswordExpiry = 15 * time.Minute
	// InviteExpiry is how long a workspace invite token is valid.
	InviteExpiry = 7 * 24 * time.Hour
)

var (
	// ErrInvalidToken is returned when a token cannot be parsed or verified.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongPurpose is returned when a valid token is presented for another purpose.
	ErrWrongPurpose = errors.New("token cannot be used for this purpose")
)

// Claims represents JWT claims. User tokens carry UserID and Purpose; admin tokens carry
// AdminID and Role.
type Claims struct {
	UserID      string `json:"userId,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
	AdminID     string `json:"adminId,omitempty"`
	Role        string `json:"role,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims belong to the master admin.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleMasterAdmin && c.AdminID != ""
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewJWTService creates a new JWT service with the given secret and lifetimes.
func NewJWTService(secret string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL returns the access token lifetime.
func (s *JWTService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

// GenerateAccessToken generates a login token for the user.
func (s *JWTService) GenerateAccessToken(userID uuid.UUID) (string, error) {
	return s.sign(&Claims{UserID: userID.String(), Purpose: PurposeLogin}, s.accessTTL)
}

// GenerateAdminToken generates a token for the master admin.
func (s *JWTService) GenerateAdminToken(adminID uuid.UUID) (string, error) {
	return s.sign(&Claims{AdminID: adminID.String(), Role: RoleMasterAdmin}, s.accessTTL)
}

// GenerateRefreshToken generates a new refresh token for the user.
// The refresh token ID is returned separately for storage in Redis.
func (s *JWTService) GenerateRefreshToken(userID uuid.UUID) (tokenID string, token string, err error) {
	claims := &Claims{UserID: userID.String(), Purpose: PurposeRefresh}
	token, err = s.sign(claims, s.refreshTTL)
	return claims.ID, token, err
}

// GenerateResetToken generates a password reset token.
func (s *JWTService) GenerateResetToken(userID uuid.UUID) (string, error) {
	return s.sign(&Claims{UserID: userID.String(), Purpose: PurposeResetPassword}, ResetPasswordExpiry)
}

// GenerateInviteToken generates a workspace invitation token.
func (s *JWTService) GenerateInviteToken(userID, workspaceID uuid.UUID, role string) (string, error) {
	return s.sign(&Claims{
		UserID:      userID.String(),
		WorkspaceID: workspaceID.String(),
		Role:        role,
		Purpose:     PurposeWorkspaceInvite,
	}, InviteExpiry)
}

func (s *JWTService) sign(claims *Claims, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        generateTokenID(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidatePurpose validates a token and requires the given purpose claim.
func (s *JWTService) ValidatePurpose(tokenString, purpose string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

// ExtractTokenID extracts the token ID (JTI) from a token.
func (s *JWTService) ExtractTokenID(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("token ID not found")
	}
	return claims.ID, nil
}

// RemainingTTL returns how long the claims stay valid from now.
func (s *JWTService) RemainingTTL(claims *Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Time.Sub(s.now())
}

// generateTokenID generates a unique token ID.
func generateTokenID() string {
	return uuid.New().String()
}
