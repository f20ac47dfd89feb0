package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestVerificationService(repo *MockVerificationRepository) *verificationService {
	jwtService := auth.NewJWTService("test-secret", time.Hour, 24*time.Hour)
	svc := NewVerificationService(repo, jwtService, nil, nil).(*verificationService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestVerificationService_Issue(t *testing.T) {
	userID := uuid.New()
	existingID := uuid.New()

	tests := []struct {
		name          string
		purpose       model.VerificationPurpose
		mode          IssueMode
		setupMock     func(*MockVerificationRepository)
		expectedError error
	}{
		{
			name:    "new code when none exists",
			purpose: model.PurposeEmail,
			mode:    IssueRejectIfActive,
			setupMock: func(m *MockVerificationRepository) {
				m.On("Find", mock.Anything, userID, model.PurposeEmail).Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.Verification")).Return(nil)
			},
		},
		{
			name:    "active code rejects a resend",
			purpose: model.PurposeEmail,
			mode:    IssueRejectIfActive,
			setupMock: func(m *MockVerificationRepository) {
				m.On("Find", mock.Anything, userID, model.PurposeEmail).Return(&model.Verification{
					ID: existingID, UserID: userID, Purpose: model.PurposeEmail, Token: "123456",
					ExpiresAt: fixedNow.Add(5 * time.Minute),
				}, nil)
			},
			expectedError: apperrors.ErrCodeAlreadySent,
		},
		{
			name:    "expired code is replaced",
			purpose: model.PurposePhone,
			mode:    IssueRejectIfActive,
			setupMock: func(m *MockVerificationRepository) {
				m.On("Find", mock.Anything, userID, model.PurposePhone).Return(&model.Verification{
					ID: existingID, UserID: userID, Purpose: model.PurposePhone, Token: "123456",
					ExpiresAt: fixedNow.Add(-time.Minute),
				}, nil)
				m.On("Delete", mock.Anything, existingID).Return(int64(1), nil)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.Verification")).Return(nil)
			},
		},
		{
			name:    "replace mode drops the previous code",
			purpose: model.PurposeLogin2FA,
			mode:    IssueReplace,
			setupMock: func(m *MockVerificationRepository) {
				m.On("DeleteFor", mock.Anything, userID, model.PurposeLogin2FA).Return(nil)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.Verification")).Return(nil)
			},
		},
		{
			name:    "concurrent insert surfaces as already sent",
			purpose: model.PurposeEmail,
			mode:    IssueRejectIfActive,
			setupMock: func(m *MockVerificationRepository) {
				m.On("Find", mock.Anything, userID, model.PurposeEmail).Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.Verification")).Return(gorm.ErrDuplicatedKey)
			},
			expectedError: apperrors.ErrCodeAlreadySent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockVerificationRepository)
			tt.setupMock(repo)
			svc := newTestVerificationService(repo)

			code, err := svc.Issue(context.Background(), userID, tt.purpose, tt.mode)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, code)
			} else {
				require.NoError(t, err)
				assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestVerificationService_IssueStoresExpiry(t *testing.T) {
	userID := uuid.New()
	repo := new(MockVerificationRepository)
	repo.On("DeleteFor", mock.Anything, userID, model.PurposeEmail).Return(nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(v *model.Verification) bool {
		return v.UserID == userID && v.ExpiresAt.Equal(fixedNow.Add(OTPExpiry))
	})).Return(nil)

	svc := newTestVerificationService(repo)
	_, err := svc.Issue(context.Background(), userID, model.PurposeEmail, IssueReplace)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestVerificationService_IssueResetToken(t *testing.T) {
	userID := uuid.New()
	repo := new(MockVerificationRepository)
	repo.On("DeleteFor", mock.Anything, userID, model.PurposeResetPassword).Return(nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(v *model.Verification) bool {
		return v.ExpiresAt.Equal(fixedNow.Add(auth.ResetPasswordExpiry))
	})).Return(nil)

	svc := newTestVerificationService(repo)
	token, err := svc.Issue(context.Background(), userID, model.PurposeResetPassword, IssueReplace)
	require.NoError(t, err)

	claims, err := svc.jwtService.ValidatePurpose(token, auth.PurposeResetPassword)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	repo.AssertExpectations(t)
}

func TestVerificationService_Consume(t *testing.T) {
	userID := uuid.New()
	codeID := uuid.New()
	active := &model.Verification{
		ID: codeID, UserID: userID, Purpose: model.PurposeEmail, Token: "482913",
		ExpiresAt: fixedNow.Add(10 * time.Minute),
	}
	expired := &model.Verification{
		ID: codeID, UserID: userID, Purpose: model.PurposeEmail, Token: "482913",
		ExpiresAt: fixedNow.Add(-time.Second),
	}

	tests := []struct {
		name          string
		token         string
		setupMock     func(*MockVerificationRepository)
		expectedError error
	}{
		{
			name:  "matching code is consumed",
			token: "482913",
			setupMock: func(m *MockVerificationRepository) {
				m.On("Find", mock.Anything, userID, model.PurposeEmail).Return(active, nil)
				m.On("Delete", mock.Anything, codeID).Return(int64(1), nil)
			},
		},
		{
			name:  "no stored code",
			token: "482913",
			setupMock: func(m *MockVerificationRepository) {
				m.On("Find", mock.Anything, userID, model.PurposeEmail).Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: apperrors.ErrInvalidCode,
		},
		{
			name:  "expired code is deleted",
			token: "482913",
			setupMock: func(m *MockVerificationRepository) {
				m.On("Find", mock.Anything, userID, model.PurposeEmail).Return(expired, nil)
				m.On("Delete", mock.Anything, codeID).Return(int64(1), nil)
			},
			expectedError: apperrors.ErrCodeExpired,
		},
		{
			name:  "wrong code keeps the stored one",
			token: "000000",
			setupMock: func(m *MockVerificationRepository) {
				m.On("Find", mock.Anything, userID, model.PurposeEmail).Return(active, nil)
			},
			expectedError: apperrors.ErrInvalidCode,
		},
		{
			name:  "concurrent consumer wins",
			token: "482913",
			setupMock: func(m *MockVerificationRepository) {
				m.On("Find", mock.Anything, userID, model.PurposeEmail).Return(active, nil)
				m.On("Delete", mock.Anything, codeID).Return(int64(0), nil)
			},
			expectedError: apperrors.ErrInvalidCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockVerificationRepository)
			tt.setupMock(repo)
			svc := newTestVerificationService(repo)

			err := svc.Consume(context.Background(), userID, model.PurposeEmail, tt.token)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
			if tt.token == "000000" {
				repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestGenerateOTP(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}
