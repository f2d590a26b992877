package services

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/activity-point/api-go/models"
	"github.com/activity-point/api-go/utils"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type AuthOptions struct {
	Secret           string
	Issuer           string
	TokenTTL         time.Duration
	DefaultAvatarURL string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

type AuthService struct {
	db   *gorm.DB
	opts AuthOptions
	log  *zap.Logger
	now  func() time.Time
}

func NewAuthService(db *gorm.DB, opts AuthOptions, log *zap.Logger) *AuthService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	return &AuthService{db: db, opts: opts, log: log.Named("auth"), now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return models.User{}, validationError("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.User{}, validationError("email is invalid")
	}
	if len(in.Password) < minPasswordLength {
		return models.User{}, validationError("password must be at least %d characters", minPasswordLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, storageError("hash password", err)
	}

	user := models.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Avatar:   s.opts.DefaultAvatarURL,
		Level:    1,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, classify("create user", err, nil)
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, classify("find user", err, nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// IssueToken signs an HS256 token whose subject is the user id.
func (s *AuthService) IssueToken(user models.User) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.opts.TokenTTL)
	claims := utils.TokenClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    s.opts.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.Secret))
	if err != nil {
		return "", time.Time{}, &Error{Kind: KindConfiguration, Code: "token_signing", Message: "could not sign token", Err: err}
	}
	return signed, expiresAt, nil
}
