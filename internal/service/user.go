package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/chronos/internal/certgen"
	"github.com/atinyakov/chronos/internal/models"
	"github.com/atinyakov/chronos/internal/repository"
	"go.uber.org/zap"
)

// loginTouchInterval limits last-login writes to one per owner per interval.
const loginTouchInterval = time.Minute

var (
	// ErrUserExists is returned when registering a taken login.
	ErrUserExists = repository.ErrUserExists
	// ErrUserNotFound is returned for owners without a profile.
	ErrUserNotFound = repository.ErrUserNotFound
	// ErrRegistrationDisabled is returned when the server has no CA key to
	// issue owner certificates with.
	ErrRegistrationDisabled = errors.New("registration is disabled")
)

// Logins become the Common Name of the owner's certificate and a segment of
// storage paths.
var loginPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// UserRepository defines the profile store operations needed by the
// UserService.
type UserRepository interface {
	UserExists(ctx context.Context, login string) (bool, error)
	RegisterUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, login string) (models.User, error)
	TouchLogin(ctx context.Context, login string, at int64) error
}

// CertIssuer issues owner client certificates.
type CertIssuer interface {
	IssueOwner(ownerID string) (certgen.Pair, error)
	CACertPEM() []byte
}

// Credentials is what a newly registered owner needs to connect.
type Credentials struct {
	Cert []byte
	Key  []byte
	CA   []byte
}

// UserService registers owners and keeps their profiles.
type UserService struct {
	repo   UserRepository
	issuer CertIssuer
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	touched map[string]time.Time
}

// NewUserService constructs a UserService. A nil issuer disables Register.
func NewUserService(repo UserRepository, issuer CertIssuer, log *zap.Logger) *UserService {
	return &UserService{
		repo:    repo,
		issuer:  issuer,
		log:     log,
		now:     time.Now,
		touched: make(map[string]time.Time),
	}
}

// SetClock replaces time.Now.
func (s *UserService) SetClock(now func() time.Time) {
	s.now = now
}

// Register creates a profile for login and issues its client certificate.
// displayName defaults to the login.
func (s *UserService) Register(ctx context.Context, login, displayName string) (models.User, Credentials, error) {
	if s.issuer == nil {
		return models.User{}, Credentials{}, ErrRegistrationDisabled
	}
	login = strings.TrimSpace(login)
	if !loginPattern.MatchString(login) {
		return models.User{}, Credentials{}, invalid("login must be 1-64 letters, digits, dots, dashes or underscores")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = login
	}

	exists, err := s.repo.UserExists(ctx, login)
	if err != nil {
		return models.User{}, Credentials{}, fmt.Errorf("check user: %w", err)
	}
	if exists {
		return models.User{}, Credentials{}, ErrUserExists
	}

	pair, err := s.issuer.IssueOwner(login)
	if err != nil {
		return models.User{}, Credentials{}, fmt.Errorf("issue certificate: %w", err)
	}

	at := s.now().UnixMilli()
	u := models.User{Login: login, DisplayName: displayName, CreatedAt: at, LastLoginAt: at}
	if err := s.repo.RegisterUser(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			return models.User{}, Credentials{}, err
		}
		return models.User{}, Credentials{}, fmt.Errorf("save user: %w", err)
	}
	s.log.Info("user registered", zap.String("login", login))
	return u, Credentials{Cert: pair.CertPEM, Key: pair.KeyPEM, CA: s.issuer.CACertPEM()}, nil
}

// Profile returns the profile of login.
func (s *UserService) Profile(ctx context.Context, login string) (models.User, error) {
	return s.repo.GetUser(ctx, login)
}

// RecordLogin stamps the last login time of login. Writes are throttled per
// owner and failures are only logged.
func (s *UserService) RecordLogin(ctx context.Context, login string) {
	now := s.now()
	s.mu.Lock()
	if last, ok := s.touched[login]; ok && now.Sub(last) < loginTouchInterval {
		s.mu.Unlock()
		return
	}
	s.touched[login] = now
	s.mu.Unlock()

	if err := s.repo.TouchLogin(ctx, login, now.UnixMilli()); err != nil {
		s.log.Warn("failed to record login", zap.String("login", login), zap.Error(err))
		s.mu.Lock()
		delete(s.touched, login)
		s.mu.Unlock()
	}
}
