package service

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"taskflow/internal/auth"
	"taskflow/internal/avatar"
	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	"taskflow/internal/mailer"
)

const (
	DefaultResetTTL = time.Hour
	minPasswordLen  = 6
)

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	ResetTTL  time.Duration
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User  models.PublicUser `json:"user"`
	Token string            `json:"token"`
}

type AuthService struct {
	users    UserRepository
	tokens   *auth.Tokens
	mailer   mailer.Sender
	avatars  avatar.Store
	resetTTL time.Duration
	now      func() time.Time
}

func NewAuthService(users UserRepository, cfg AuthConfig, sender mailer.Sender, avatars avatar.Store) *AuthService {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if sender == nil {
		sender = mailer.LogSender{}
	}
	return &AuthService{
		users:    users,
		tokens:   auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		mailer:   sender,
		avatars:  avatars,
		resetTTL: cfg.ResetTTL,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, errors.ErrMissingRegistration
	}
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if len(req.Password) > auth.MaxPasswordBytes {
		return nil, errors.ErrPasswordTooLong
	}

	if _, err := s.users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, errors.ErrUserAlreadyExists
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Name: req.Name, Email: req.Email, Password: hash}
	// A concurrent registration surfaces here as ErrUserAlreadyExists.
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, errors.ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		return nil, errors.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		log.Println("[ERROR] Failed to sign token:", err)
		return nil, err
	}
	return &AuthResult{User: user.Public(), Token: token}, nil
}

// Authorize resolves an Authorization header value to its user.
func (s *AuthService) Authorize(ctx context.Context, header string) (*models.User, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, errors.ErrNoToken
	}
	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" {
		return nil, errors.ErrNoToken
	}
	userID, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// UpdateProfile changes the name, email or avatar of a user. Nil fields are
// left alone.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest, up *avatar.Upload) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errors.ErrInvalidName
		}
		req.Name = &name
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		req.Email = &email
	}
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil && *req.Email != user.Email {
		if other, err := s.users.GetUserByEmail(ctx, *req.Email); err == nil && other.ID != user.ID {
			return nil, errors.ErrUserAlreadyExists
		} else if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		user.Email = *req.Email
	}
	if up == nil {
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	if s.avatars == nil {
		return nil, errors.ErrInvalidAvatar
	}
	if err := avatar.Validate(*up); err != nil {
		return nil, err
	}
	url, err := s.avatars.Save(ctx, user.ID, *up)
	if err != nil {
		return nil, err
	}
	user.Avatar = url
	if err := s.users.UpdateUser(ctx, user); err != nil {
		if rerr := s.avatars.Remove(ctx, url); rerr != nil {
			log.Println("[WARN] Failed to remove orphaned avatar:", rerr)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return errors.ErrMissingPasswords
	}
	if err := checkNewPassword(req.NewPassword); err != nil {
		return err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.Password, req.CurrentPassword) {
		return errors.ErrWrongPassword
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.Password = hash
	return s.users.UpdateUser(ctx, user)
}

func (s *AuthService) Deactivate(ctx context.Context, userID string) error {
	return s.users.DeleteUser(ctx, userID)
}

// RequestPasswordReset stores a fresh code for the account and mails it.
// An unknown address is not an error.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req models.ForgotPasswordRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			log.Println("[INFO] Password reset requested for unknown address")
			return nil
		}
		return err
	}

	code, err := auth.GenerateResetCode()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.resetTTL)
	user.ResetPasswordToken = code
	user.ResetPasswordExpires = &expires
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}

	if err := s.mailer.SendResetCode(ctx, user.Email, code, s.resetTTL); err != nil {
		user.ClearReset()
		if uerr := s.users.UpdateUser(ctx, user); uerr != nil {
			log.Println("[WARN] Failed to clear undelivered reset code:", uerr)
		}
		return err
	}
	return nil
}

func (s *AuthService) VerifyResetCode(ctx context.Context, req models.VerifyResetCodeRequest) error {
	req.Code = strings.TrimSpace(req.Code)
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}
	_, err := s.userByResetCode(ctx, req.Email, req.Code)
	return err
}

func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	req.Code = strings.TrimSpace(req.Code)
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}
	if err := checkNewPassword(req.NewPassword); err != nil {
		return err
	}
	user, err := s.userByResetCode(ctx, req.Email, req.Code)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.Password = hash
	user.ClearReset()
	return s.users.UpdateUser(ctx, user)
}

// checkNewPassword enforces the length rules for a changed or reset
// password. Registration only applies the bcrypt byte cap.
func checkNewPassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return errors.ErrPasswordTooShort
	}
	if len(password) > auth.MaxPasswordBytes {
		return errors.ErrPasswordTooLong
	}
	return nil
}

func (s *AuthService) userByResetCode(ctx context.Context, email, code string) (*models.User, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, errors.ErrInvalidResetCode
	}
	user, err := s.users.GetUserByResetCode(ctx, email, code, s.now())
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidResetCode
		}
		return nil, err
	}
	return user, nil
}
