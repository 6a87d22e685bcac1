package service

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskflow/internal/avatar"
	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	storage "taskflow/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	return m.Called(to, code, ttl).Error(0)
}

func newAuthService(t *testing.T, sender *mockSender) (*AuthService, *storage.Storage) {
	t.Helper()
	repo := storage.NewStorage()
	svc := NewAuthService(repo, AuthConfig{JWTSecret: "test-secret"}, sender, avatar.NewDiskStore(t.TempDir(), "http://localhost:8080"))
	return svc, repo
}

func register(t *testing.T, svc *AuthService, email string) *AuthResult {
	t.Helper()
	res, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Ann", Email: email, Password: "secret1"})
	require.NoError(t, err)
	return res
}

func TestAuthServiceRegister(t *testing.T) {
	tests := []struct {
		name string
		req  models.RegisterRequest
		want error
	}{
		{name: "missing name", req: models.RegisterRequest{Email: "a@example.com", Password: "secret1"}, want: errors.ErrMissingRegistration},
		{name: "blank name", req: models.RegisterRequest{Name: "  ", Email: "a@example.com", Password: "secret1"}, want: errors.ErrMissingRegistration},
		{name: "missing email", req: models.RegisterRequest{Name: "Ann", Password: "secret1"}, want: errors.ErrMissingRegistration},
		{name: "missing password", req: models.RegisterRequest{Name: "Ann", Email: "a@example.com"}, want: errors.ErrMissingRegistration},
		{name: "password over 72 bytes", req: models.RegisterRequest{Name: "Ann", Email: "a@example.com", Password: strings.Repeat("p", 80)}, want: errors.ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newAuthService(t, &mockSender{})
			_, err := svc.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, errors.ErrValidationFailed)
		})
	}

	t.Run("normalizes and stores a hash", func(t *testing.T) {
		svc, repo := newAuthService(t, &mockSender{})
		res, err := svc.Register(context.Background(), models.RegisterRequest{
			Name: "  Ann ", Email: "  Ann@Example.COM ", Password: "secret1",
		})
		require.NoError(t, err)
		assert.Equal(t, "Ann", res.User.Name)
		assert.Equal(t, "ann@example.com", res.User.Email)
		assert.NotEmpty(t, res.Token)

		stored, err := repo.GetUserByEmail(context.Background(), "ann@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, "secret1", stored.Password)
		assert.True(t, strings.HasPrefix(stored.Password, "$2"))
	})

	t.Run("only presence is required", func(t *testing.T) {
		svc, _ := newAuthService(t, &mockSender{})
		res, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Ann", Email: "ann", Password: "abc"})
		require.NoError(t, err)
		assert.Equal(t, "ann", res.User.Email)

		_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ann", Password: "abc"})
		assert.NoError(t, err)
	})

	t.Run("duplicate email ignores case", func(t *testing.T) {
		svc, _ := newAuthService(t, &mockSender{})
		register(t, svc, "ann@example.com")

		_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Other", Email: "ANN@example.com", Password: "secret2"})
		assert.ErrorIs(t, err, errors.ErrUserAlreadyExists)
		assert.ErrorIs(t, err, errors.ErrConflict)
	})
}

func TestAuthServiceLogin(t *testing.T) {
	svc, _ := newAuthService(t, &mockSender{})
	registered := register(t, svc, "ann@example.com")

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: " ANN@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.User, res.User)
	assert.NotEmpty(t, res.Token)

	_, wrongPassword := svc.Login(context.Background(), models.LoginRequest{Email: "ann@example.com", Password: "nope12"})
	_, unknownUser := svc.Login(context.Background(), models.LoginRequest{Email: "bob@example.com", Password: "secret1"})
	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.ErrorIs(t, wrongPassword, errors.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, errors.ErrInvalidCredentials)
}

func TestAuthServiceAuthorize(t *testing.T) {
	svc, repo := newAuthService(t, &mockSender{})
	res := register(t, svc, "ann@example.com")

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "missing header", header: "", want: errors.ErrNoToken},
		{name: "basic scheme", header: "Basic abc", want: errors.ErrNoToken},
		{name: "empty bearer", header: "Bearer ", want: errors.ErrNoToken},
		{name: "garbage token", header: "Bearer abc.def.ghi", want: errors.ErrInvalidToken},
		{name: "valid token", header: "Bearer " + res.Token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Authorize(context.Background(), tt.header)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.ErrorIs(t, err, errors.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, res.User.ID, user.ID)
		})
	}

	t.Run("deleted user", func(t *testing.T) {
		require.NoError(t, repo.DeleteUser(context.Background(), res.User.ID))
		_, err := svc.Authorize(context.Background(), "Bearer "+res.Token)
		assert.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

func TestAuthServiceChangePassword(t *testing.T) {
	svc, _ := newAuthService(t, &mockSender{})
	res := register(t, svc, "ann@example.com")
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.ChangePasswordRequest
		want error
	}{
		{name: "missing current", req: models.ChangePasswordRequest{NewPassword: "newpass1"}, want: errors.ErrMissingPasswords},
		{name: "missing new", req: models.ChangePasswordRequest{CurrentPassword: "secret1"}, want: errors.ErrMissingPasswords},
		{name: "short new", req: models.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "abc"}, want: errors.ErrPasswordTooShort},
		{name: "new over 72 bytes", req: models.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: strings.Repeat("p", 80)}, want: errors.ErrPasswordTooLong},
		{name: "wrong current", req: models.ChangePasswordRequest{CurrentPassword: "guess12", NewPassword: "newpass1"}, want: errors.ErrWrongPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.ChangePassword(ctx, res.User.ID, tt.req), tt.want)
		})
	}

	require.NoError(t, svc.ChangePassword(ctx, res.User.ID, models.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "newpass1"}))
	_, err := svc.Login(ctx, models.LoginRequest{Email: "ann@example.com", Password: "newpass1"})
	assert.NoError(t, err)
	_, err = svc.Login(ctx, models.LoginRequest{Email: "ann@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestAuthServiceUpdateProfile(t *testing.T) {
	svc, _ := newAuthService(t, &mockSender{})
	ann := register(t, svc, "ann@example.com")
	register(t, svc, "bob@example.com")
	ctx := context.Background()
	str := func(s string) *string { return &s }

	user, err := svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{Name: str("  Annie ")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Annie", user.Name)
	assert.Equal(t, "ann@example.com", user.Email)

	_, err = svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{Email: str("BOB@example.com")}, nil)
	assert.ErrorIs(t, err, errors.ErrUserAlreadyExists)

	_, err = svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{Name: str(" ")}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidName)

	_, err = svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{Email: str("broken")}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidEmail)

	user, err = svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{Email: str("Annie@Example.com")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "annie@example.com", user.Email)

	big := avatar.Upload{Filename: "big.png", ContentType: "image/png", Size: avatar.MaxSize + 1}
	_, err = svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{}, &big)
	assert.ErrorIs(t, err, errors.ErrAvatarTooLarge)

	pdf := avatar.Upload{Filename: "cv.pdf", ContentType: "application/pdf", Size: 10}
	_, err = svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{}, &pdf)
	assert.ErrorIs(t, err, errors.ErrInvalidAvatar)

	current, err := svc.CurrentUser(ctx, ann.User.ID)
	require.NoError(t, err)
	assert.Empty(t, current.Avatar)
}

type failingUpdates struct {
	*storage.Storage
}

func (failingUpdates) UpdateUser(context.Context, *models.User) error {
	return errors.ErrUserAlreadyExists
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	require.NoError(t, filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	}))
	return n
}

func TestAuthServiceUpdateProfileAvatarCleanup(t *testing.T) {
	ctx := context.Background()
	str := func(s string) *string { return &s }
	png := func() *avatar.Upload {
		return &avatar.Upload{
			Filename:    "me.png",
			ContentType: "image/png",
			Size:        6,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader("pixels")), nil
			},
		}
	}

	t.Run("email conflict stores nothing", func(t *testing.T) {
		dir := t.TempDir()
		repo := storage.NewStorage()
		svc := NewAuthService(repo, AuthConfig{JWTSecret: "test-secret"}, &mockSender{}, avatar.NewDiskStore(dir, "http://localhost:8080"))
		ann := register(t, svc, "ann@example.com")
		register(t, svc, "bob@example.com")

		_, err := svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{Email: str("bob@example.com")}, png())
		assert.ErrorIs(t, err, errors.ErrUserAlreadyExists)
		assert.Zero(t, countFiles(t, dir))
	})

	t.Run("failed update removes upload", func(t *testing.T) {
		dir := t.TempDir()
		repo := storage.NewStorage()
		svc := NewAuthService(repo, AuthConfig{JWTSecret: "test-secret"}, &mockSender{}, avatar.NewDiskStore(dir, "http://localhost:8080"))
		ann := register(t, svc, "ann@example.com")

		svc.users = failingUpdates{repo}
		_, err := svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{}, png())
		assert.ErrorIs(t, err, errors.ErrUserAlreadyExists)
		assert.Zero(t, countFiles(t, dir))
	})

	t.Run("successful update keeps upload", func(t *testing.T) {
		dir := t.TempDir()
		svc := NewAuthService(storage.NewStorage(), AuthConfig{JWTSecret: "test-secret"}, &mockSender{}, avatar.NewDiskStore(dir, "http://localhost:8080"))
		ann := register(t, svc, "ann@example.com")

		user, err := svc.UpdateProfile(ctx, ann.User.ID, models.UpdateProfileRequest{}, png())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(user.Avatar, "http://localhost:8080/uploads/avatars/"), user.Avatar)
		assert.Equal(t, 1, countFiles(t, dir))
	})
}

func TestAuthServicePasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown address", func(t *testing.T) {
		sender := &mockSender{}
		svc, _ := newAuthService(t, sender)

		err := svc.RequestPasswordReset(ctx, models.ForgotPasswordRequest{Email: "ghost@example.com"})
		assert.NoError(t, err)
		sender.AssertNotCalled(t, "SendResetCode", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("full flow", func(t *testing.T) {
		sender := &mockSender{}
		svc, _ := newAuthService(t, sender)
		register(t, svc, "ann@example.com")

		var code string
		sender.On("SendResetCode", "ann@example.com", mock.AnythingOfType("string"), time.Hour).
			Run(func(args mock.Arguments) { code = args.String(1) }).
			Return(nil).Once()

		require.NoError(t, svc.RequestPasswordReset(ctx, models.ForgotPasswordRequest{Email: " ANN@example.com "}))
		sender.AssertExpectations(t)
		require.Regexp(t, `^\d{6}$`, code)

		wrong := fmt.Sprintf("%06d", (mustAtoi(code)+1)%1000000)
		assert.ErrorIs(t, svc.VerifyResetCode(ctx, models.VerifyResetCodeRequest{Email: "ann@example.com", Code: wrong}), errors.ErrInvalidResetCode)
		assert.NoError(t, svc.VerifyResetCode(ctx, models.VerifyResetCodeRequest{Email: "ann@example.com", Code: code}))

		require.NoError(t, svc.ResetPassword(ctx, models.ResetPasswordRequest{Email: "ann@example.com", Code: code, NewPassword: "brandnew"}))

		_, err := svc.Login(ctx, models.LoginRequest{Email: "ann@example.com", Password: "brandnew"})
		assert.NoError(t, err)

		err = svc.ResetPassword(ctx, models.ResetPasswordRequest{Email: "ann@example.com", Code: code, NewPassword: "another1"})
		assert.ErrorIs(t, err, errors.ErrInvalidResetCode)
	})

	t.Run("expired code", func(t *testing.T) {
		sender := &mockSender{}
		svc, _ := newAuthService(t, sender)
		register(t, svc, "ann@example.com")

		var code string
		sender.On("SendResetCode", "ann@example.com", mock.Anything, time.Hour).
			Run(func(args mock.Arguments) { code = args.String(1) }).
			Return(nil)
		require.NoError(t, svc.RequestPasswordReset(ctx, models.ForgotPasswordRequest{Email: "ann@example.com"}))

		svc.now = func() time.Time { return time.Now().Add(time.Hour + time.Minute) }
		err := svc.VerifyResetCode(ctx, models.VerifyResetCodeRequest{Email: "ann@example.com", Code: code})
		assert.ErrorIs(t, err, errors.ErrInvalidResetCode)
	})

	t.Run("delivery failure", func(t *testing.T) {
		sender := &mockSender{}
		svc, repo := newAuthService(t, sender)
		register(t, svc, "ann@example.com")

		sender.On("SendResetCode", mock.Anything, mock.Anything, mock.Anything).
			Return(fmt.Errorf("%w: relay down", errors.ErrEmailDelivery))

		err := svc.RequestPasswordReset(ctx, models.ForgotPasswordRequest{Email: "ann@example.com"})
		assert.ErrorIs(t, err, errors.ErrEmailDelivery)

		user, err := repo.GetUserByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		assert.Empty(t, user.ResetPasswordToken)
		assert.Nil(t, user.ResetPasswordExpires)
	})

	t.Run("new password rules", func(t *testing.T) {
		svc, _ := newAuthService(t, &mockSender{})
		tests := []struct {
			name     string
			password string
			want     error
		}{
			{name: "missing", password: "", want: errors.ErrMissingPasswords},
			{name: "short", password: "abc", want: errors.ErrPasswordTooShort},
			{name: "over 72 bytes", password: strings.Repeat("p", 80), want: errors.ErrPasswordTooLong},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := svc.ResetPassword(ctx, models.ResetPasswordRequest{Email: "ann@example.com", Code: "123456", NewPassword: tt.password})
				assert.ErrorIs(t, err, tt.want)
				assert.ErrorIs(t, err, errors.ErrValidationFailed)
			})
		}
	})

	t.Run("malformed code", func(t *testing.T) {
		svc, _ := newAuthService(t, &mockSender{})
		for _, code := range []string{"12ab56", "12345", "1234567", ""} {
			err := svc.VerifyResetCode(ctx, models.VerifyResetCodeRequest{Email: "ann@example.com", Code: code})
			assert.ErrorIs(t, err, errors.ErrInvalidResetCode, code)

			err = svc.ResetPassword(ctx, models.ResetPasswordRequest{Email: "ann@example.com", Code: code, NewPassword: "brandnew"})
			assert.ErrorIs(t, err, errors.ErrInvalidResetCode, code)
		}
	})
}

func TestAuthServiceDeactivate(t *testing.T) {
	svc, _ := newAuthService(t, &mockSender{})
	res := register(t, svc, "ann@example.com")
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, res.User.ID))

	_, err := svc.Authorize(ctx, "Bearer "+res.Token)
	assert.ErrorIs(t, err, errors.ErrInvalidToken)
	_, err = svc.Login(ctx, models.LoginRequest{Email: "ann@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func mustAtoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
