package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/cooldown"
	"github.com/xxxsen/mtodo/internal/metrics"
	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/jwt"
	"github.com/xxxsen/mtodo/internal/pkg/password"
	"github.com/xxxsen/mtodo/internal/pkg/token"
)

const (
	VerificationTokenTTL = 10 * time.Hour
	ResetTokenTTL        = 10 * time.Minute
	DefaultSessionTTL    = 48 * time.Hour
	ResetCooldown        = 60 * time.Second
)

const (
	eventRegister      = "register"
	eventVerify        = "verify_email"
	eventLogin         = "login"
	eventForgot        = "forgot_password"
	eventResetPassword = "reset_password"
)

var (
	errInvalidCredentials = appErr.New(appErr.ErrUnauthorized, "Invalid credentials")
	errUserExists         = appErr.New(appErr.ErrConflict, "User already exists")
	errVerifyToken        = appErr.New(appErr.ErrInvalid, "Invalid or expired verification token")
	errResetToken         = appErr.New(appErr.ErrInvalid, "Invalid or expired reset token")
	errPasswordTooShort   = appErr.New(appErr.ErrInvalid, "Password must be at least 6 characters")
	errPasswordTooLong    = appErr.New(appErr.ErrInvalid, "Password must be at most 72 bytes")
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByVerificationToken(ctx context.Context, token, purpose string, now int64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	SetVerificationToken(ctx context.Context, userID, token, purpose string, expiry, mtime int64) error
	MarkVerified(ctx context.Context, userID, token string, mtime int64) error
	ResetPassword(ctx context.Context, userID, token, passwordHash string, mtime int64) error
}

// Mailer sends the account mails. It reports delivery as a bool and never
// fails the calling operation.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, token string, ttl time.Duration) bool
	SendPasswordReset(ctx context.Context, to, name, token string, ttl time.Duration) bool
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// Session is the result of a successful login.
type Session struct {
	User      model.UserSummary
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users      UserStore
	mailer     Mailer
	cooldown   cooldown.Store
	recorder   metrics.Recorder
	jwtSecret  []byte
	sessionTTL time.Duration
	compare    func(hash, plain string) error
	now        func() time.Time
}

func NewAuthService(users UserStore, mailer Mailer, limiter cooldown.Store, recorder metrics.Recorder, secret []byte, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if limiter == nil {
		limiter = cooldown.NewLRU(0, ResetCooldown)
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &AuthService{
		users:      users,
		mailer:     mailer,
		cooldown:   limiter,
		recorder:   recorder,
		jwtSecret:  secret,
		sessionTTL: ttl,
		compare:    password.Compare,
		now:        time.Now,
	}
}

func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (_ *model.UserSummary, err error) {
	defer func() { s.record(eventRegister, err) }()

	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := checkPassword(input.Password); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, errUserExists
	} else if !appErr.IsNotFound(err) {
		return nil, err
	}

	verifyToken, err := token.New()
	if err != nil {
		return nil, err
	}
	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user := &model.User{
		ID:                      newID(),
		Name:                    input.Name,
		Email:                   input.Email,
		PasswordHash:            hash,
		IsVerified:              false,
		Role:                    model.RoleUser,
		VerificationToken:       verifyToken,
		VerificationTokenExpiry: now.Add(VerificationTokenTTL).Unix(),
		TokenPurpose:            model.TokenPurposeVerify,
		Ctime:                   now.Unix(),
		Mtime:                   now.Unix(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if appErr.IsConflict(err) {
			return nil, errUserExists
		}
		return nil, err
	}
	if !s.mailer.SendVerification(ctx, user.Email, user.Name, verifyToken, VerificationTokenTTL) {
		logutil.GetLogger(ctx).Warn("verification mail not delivered", zap.String("user_id", user.ID))
	}
	summary := user.Summary()
	return &summary, nil
}

// VerifyEmail consumes a verification token. The token is cleared in the
// same statement that marks the user verified, so a replay finds nothing.
func (s *AuthService) VerifyEmail(ctx context.Context, verifyToken string) (err error) {
	defer func() { s.record(eventVerify, err) }()

	verifyToken = strings.TrimSpace(verifyToken)
	if verifyToken == "" {
		return appErr.New(appErr.ErrInvalid, "Token is required")
	}
	now := s.now().Unix()
	user, err := s.users.GetByVerificationToken(ctx, verifyToken, model.TokenPurposeVerify, now)
	if err != nil {
		if appErr.IsNotFound(err) {
			return errVerifyToken
		}
		return err
	}
	if err := s.users.MarkVerified(ctx, user.ID, verifyToken, now); err != nil {
		if appErr.IsNotFound(err) {
			return errVerifyToken
		}
		return err
	}
	return nil
}

// Login checks the password before the verification flag, so an
// unverified account is only revealed to someone holding its password. An
// unknown email still pays for one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (_ *Session, err error) {
	defer func() { s.record(eventLogin, err) }()

	input.Email = normalizeEmail(input.Email)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if appErr.IsNotFound(err) {
			_ = s.compare(password.DummyHash(), input.Password)
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := s.compare(user.PasswordHash, input.Password); err != nil {
		return nil, errInvalidCredentials
	}
	if !user.IsVerified {
		return nil, appErr.New(appErr.ErrForbidden, "Please verify your email")
	}
	now := s.now()
	signed, err := jwt.GenerateToken(user.ID, user.Role, s.jwtSecret, s.sessionTTL, now)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:      user.Summary(),
		Token:     signed,
		ExpiresAt: now.Add(s.sessionTTL),
	}, nil
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { s.record(eventForgot, err) }()

	input := forgotPasswordInput{Email: normalizeEmail(email)}
	if err := validateInput(input); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if appErr.IsNotFound(err) {
			return appErr.New(appErr.ErrNotFound, "User not found")
		}
		return err
	}
	cooldownKey := "reset:" + user.Email
	allowed, err := s.cooldown.Acquire(ctx, cooldownKey)
	if err != nil {
		return err
	}
	if !allowed {
		return appErr.New(appErr.ErrTooMany, "Reset email already sent, please try again later")
	}
	if err := s.issueResetToken(ctx, user); err != nil {
		if rerr := s.cooldown.Release(ctx, cooldownKey); rerr != nil {
			logutil.GetLogger(ctx).Warn("release reset cooldown failed", zap.String("user_id", user.ID), zap.Error(rerr))
		}
		return err
	}
	return nil
}

func (s *AuthService) issueResetToken(ctx context.Context, user *model.User) error {
	resetToken, err := token.New()
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.users.SetVerificationToken(ctx, user.ID, resetToken, model.TokenPurposeReset, now.Add(ResetTokenTTL).Unix(), now.Unix()); err != nil {
		return err
	}
	if !s.mailer.SendPasswordReset(ctx, user.Email, user.Name, resetToken, ResetTokenTTL) {
		logutil.GetLogger(ctx).Warn("password reset mail not delivered", zap.String("user_id", user.ID))
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) (err error) {
	defer func() { s.record(eventResetPassword, err) }()

	input.Token = strings.TrimSpace(input.Token)
	if err := validateInput(input); err != nil {
		return err
	}
	if err := checkPassword(input.Password); err != nil {
		return err
	}
	now := s.now().Unix()
	user, err := s.users.GetByVerificationToken(ctx, input.Token, model.TokenPurposeReset, now)
	if err != nil {
		if appErr.IsNotFound(err) {
			return errResetToken
		}
		return err
	}
	hash, err := password.Hash(input.Password)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, user.ID, input.Token, hash, now); err != nil {
		if appErr.IsNotFound(err) {
			return errResetToken
		}
		return err
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// ResolveSession verifies a session token and loads the user it names.
// Every failure, including a user deleted after the token was issued, is
// ErrUnauthorized.
func (s *AuthService) ResolveSession(ctx context.Context, raw string) (*model.User, error) {
	if raw == "" {
		return nil, appErr.ErrUnauthorized
	}
	claims, err := jwt.ParseToken(raw, s.jwtSecret, s.now())
	if err != nil {
		return nil, appErr.ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

func checkPassword(plain string) error {
	switch {
	case password.TooShort(plain):
		return errPasswordTooShort
	case password.TooLong(plain):
		return errPasswordTooLong
	}
	return nil
}

func (s *AuthService) record(event string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.recorder.RecordAuthEvent(event, outcome)
}
