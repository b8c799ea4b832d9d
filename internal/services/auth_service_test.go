// internal/services/auth_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/marketbridge/wholesale-backend/internal/apperrors"
	"github.com/marketbridge/wholesale-backend/internal/models"
	"github.com/marketbridge/wholesale-backend/internal/utils"
)

type AuthServiceTestSuite struct {
	suite.Suite
	db  *gorm.DB
	svc *AuthService
}

func (s *AuthServiceTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	cfg := testConfig()
	utils.SetJWTSecret(cfg.JWT.SecretKey)
	s.svc = NewAuthService(s.db, cfg)
}

func (s *AuthServiceTestSuite) register(username, email string, userType models.UserType) *AuthResponse {
	resp, err := s.svc.Register(&RegisterRequest{
		Username: username,
		Email:    email,
		Password: "Str0ng!Pass",
		UserType: userType,
	})
	s.Require().NoError(err)
	return resp
}

func (s *AuthServiceTestSuite) TestRegisterIssuesTokens() {
	resp := s.register("acme_buyer", "buyer@acme.test", models.UserTypeBuyer)

	s.Equal("Bearer", resp.TokenType)
	s.NotEmpty(resp.AccessToken)
	s.NotEmpty(resp.RefreshToken)

	claims, err := utils.ValidateJWT(resp.AccessToken)
	s.Require().NoError(err)
	s.Equal(resp.User.ID.String(), claims.UserID)
	s.Equal("buyer", claims.UserType)
}

func (s *AuthServiceTestSuite) TestRegisterRejectsAdmin() {
	_, err := s.svc.Register(&RegisterRequest{
		Username: "root_user",
		Email:    "root@acme.test",
		Password: "Str0ng!Pass",
		UserType: models.UserTypeAdmin,
	})
	s.True(apperrors.HasCode(err, apperrors.CodeValidation))
}

func (s *AuthServiceTestSuite) TestRegisterRejectsDuplicateEmail() {
	s.register("first_user", "dup@acme.test", models.UserTypeBuyer)

	_, err := s.svc.Register(&RegisterRequest{
		Username: "second_user",
		Email:    "dup@acme.test",
		Password: "Str0ng!Pass",
		UserType: models.UserTypeBuyer,
	})
	s.True(apperrors.HasCode(err, apperrors.CodeValidation))
}

func (s *AuthServiceTestSuite) TestLogin() {
	s.register("acme_seller", "seller@acme.test", models.UserTypeSeller)

	resp, err := s.svc.Login(&LoginRequest{Email: "seller@acme.test", Password: "Str0ng!Pass"})
	s.Require().NoError(err)
	s.NotEmpty(resp.AccessToken)

	_, err = s.svc.Login(&LoginRequest{Email: "seller@acme.test", Password: "wrong"})
	s.True(apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func (s *AuthServiceTestSuite) TestLoginSuspendedAccount() {
	resp := s.register("shady_corp", "shady@acme.test", models.UserTypeSeller)
	s.Require().NoError(s.db.Model(&models.User{}).Where("id = ?", resp.User.ID).
		Update("status", models.UserStatusSuspended).Error)

	_, err := s.svc.Login(&LoginRequest{Email: "shady@acme.test", Password: "Str0ng!Pass"})
	s.True(apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
