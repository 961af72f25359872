package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bookfair/backend/internal/security"
	sessiondomain "bookfair/backend/internal/session/domain"
	"bookfair/backend/internal/telemetry/metrics"
	userdomain "bookfair/backend/internal/user/domain"
	"bookfair/backend/internal/userevents"
)

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	ErrDuplicateIdentity  = errors.New("duplicate identity")
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrDuplicateIdentity)
	ErrMobileTaken        = fmt.Errorf("%w: mobile number already registered", ErrDuplicateIdentity)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid input")
)

// unknownClient is recorded when the caller sent no device or address information.
const unknownClient = "unknown"

// AuthResult is returned by Register, Login and Refresh.
type AuthResult struct {
	User   *userdomain.User
	Tokens *security.TokenPair
	// ExpiresIn is the access token validity in milliseconds.
	ExpiresIn int64
}

// ClientInfo identifies the device and address a session was opened from.
type ClientInfo struct {
	DeviceInfo string
	IPAddress  string
}

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	FirstName   string
	LastName    string
	CompanyName string
	Email       string
	MobileNo    string
	Password    string
	Role        string
}

// UpdateInput carries the mutable profile fields.
type UpdateInput struct {
	FirstName   string
	LastName    string
	CompanyName string
	MobileNo    string
}

// UserRepo is the user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByMobile(ctx context.Context, mobileNo string) (*userdomain.User, error)
	CreateWithSession(ctx context.Context, u *userdomain.User, s *sessiondomain.Session) error
	UpdateProfile(ctx context.Context, id string, p userdomain.Profile, at time.Time) (*userdomain.User, error)
	SoftDelete(ctx context.Context, id string, at time.Time) (*userdomain.User, error)
}

// SessionRepo is the session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	GetActiveByAccessDigest(ctx context.Context, digest string) (*sessiondomain.Session, error)
	GetActiveByRefreshDigest(ctx context.Context, digest string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Deactivate(ctx context.Context, id string, version int64, at time.Time) error
	Rotate(ctx context.Context, id string, version int64, at time.Time, next *sessiondomain.Session) error
}

// PasswordHasher hashes and matches passwords. *security.Hasher satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Matches(hash, password string) bool
}

// TokenIssuer issues and verifies bearer tokens. *security.TokenCodec satisfies it.
type TokenIssuer interface {
	IssuePair(subject, role string) (*security.TokenPair, error)
	VerifyType(token string, want security.TokenType) (*security.VerifiedToken, error)
	AccessTTL() time.Duration
}

// Publisher emits user lifecycle events. Publish never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, u *userdomain.User, t userevents.EventType)
}

// AuthService implements registration, login, refresh, logout and profile management.
// It is the only writer of users and sessions.
type AuthService struct {
	users     UserRepo
	sessions  SessionRepo
	hasher    PasswordHasher
	tokens    TokenIssuer
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. publisher may be nil.
func NewAuthService(users UserRepo, sessions SessionRepo, hasher PasswordHasher, tokens TokenIssuer, publisher Publisher, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		tokens:    tokens,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an ACTIVE user, opens its first session and emits CREATED.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (*AuthResult, error) {
	res, err := s.register(ctx, in, client)
	observe("register", err)
	return res, err
}

func (s *AuthService) register(ctx context.Context, in RegisterInput, client ClientInfo) (*AuthResult, error) {
	email := userdomain.NormalizeEmail(in.Email)
	mobile := strings.TrimSpace(in.MobileNo)
	if email == "" || mobile == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email, mobile number and password are required", ErrInvalidInput)
	}
	role, err := userdomain.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.logger.Info("registering user", zap.String("email", email))

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	existing, err = s.users.GetByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMobileTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		CompanyName:  strings.TrimSpace(in.CompanyName),
		Email:        email,
		MobileNo:     mobile,
		PasswordHash: hash,
		Role:         role,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	sess, res, err := s.newSession(user, client)
	if err != nil {
		return nil, err
	}
	if err := s.users.CreateWithSession(ctx, user, sess); err != nil {
		if errors.Is(err, userdomain.ErrDuplicate) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	s.publish(ctx, user, userevents.EventCreated)
	return res, nil
}

// Login authenticates by email and password and opens a new session. Unknown email, wrong
// password and inactive accounts all return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (*AuthResult, error) {
	res, err := s.login(ctx, email, password, client)
	observe("login", err)
	return res, err
}

func (s *AuthService) login(ctx context.Context, email, password string, client ClientInfo) (*AuthResult, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	s.logger.Info("logging in user", zap.String("email", email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Matches(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.openSession(ctx, user, client)
}

// Refresh rotates the session holding refreshToken: the old session is deactivated and a new
// one with a fresh token pair replaces it in one transaction. A refresh token works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	res, err := s.refresh(ctx, refreshToken)
	observe("refresh", err)
	return res, err
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidCredentials
	}
	sess, err := s.sessions.GetActiveByRefreshDigest(ctx, security.TokenDigest(refreshToken))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidCredentials
	}
	claims, err := s.tokens.VerifyType(refreshToken, security.TokenTypeRefresh)
	if err != nil || claims.Subject != sess.UserID {
		return nil, ErrInvalidCredentials
	}
	// The role comes from the user row, never from the refresh token.
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil, ErrInvalidCredentials
	}

	next, res, err := s.newSession(user, ClientInfo{DeviceInfo: sess.DeviceInfo, IPAddress: sess.IPAddress})
	if err != nil {
		return nil, err
	}
	err = s.sessions.Rotate(ctx, sess.ID, sess.Version, s.now(), next)
	if errors.Is(err, sessiondomain.ErrOptimisticConflict) {
		cur, rerr := s.sessions.GetByID(ctx, sess.ID)
		if rerr != nil {
			return nil, rerr
		}
		if cur == nil || !cur.Active {
			return nil, ErrInvalidCredentials
		}
		err = s.sessions.Rotate(ctx, cur.ID, cur.Version, s.now(), next)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Logout deactivates the active session holding accessToken. Unknown, expired or already
// logged-out tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	err := s.logout(ctx, accessToken)
	observe("logout", err)
	return err
}

func (s *AuthService) logout(ctx context.Context, accessToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil
	}
	sess, err := s.sessions.GetActiveByAccessDigest(ctx, security.TokenDigest(accessToken))
	if err != nil || sess == nil {
		return err
	}
	err = s.sessions.Deactivate(ctx, sess.ID, sess.Version, s.now())
	if !errors.Is(err, sessiondomain.ErrOptimisticConflict) {
		return err
	}
	cur, err := s.sessions.GetByID(ctx, sess.ID)
	if err != nil {
		return err
	}
	if cur == nil || !cur.Active {
		return nil
	}
	return s.sessions.Deactivate(ctx, cur.ID, cur.Version, s.now())
}

// GetProfile returns the user with id userID.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*userdomain.User, error) {
	return s.loadUser(ctx, userID)
}

// UpdateUser sets the profile fields and emits UPDATED. Password, role and status are never
// written here, so a concurrent password reset is not undone.
func (s *AuthService) UpdateUser(ctx context.Context, userID string, in UpdateInput) (*userdomain.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	mobile := strings.TrimSpace(in.MobileNo)
	if mobile == "" {
		return nil, fmt.Errorf("%w: mobile number is required", ErrInvalidInput)
	}
	if mobile != user.MobileNo {
		other, err := s.users.GetByMobile(ctx, mobile)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != user.ID {
			return nil, ErrMobileTaken
		}
	}
	updated, err := s.users.UpdateProfile(ctx, user.ID, userdomain.Profile{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		CompanyName: strings.TrimSpace(in.CompanyName),
		MobileNo:    mobile,
	}, s.now())
	if err != nil {
		if errors.Is(err, userdomain.ErrDuplicate) {
			return nil, ErrMobileTaken
		}
		return nil, err
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	s.publish(ctx, updated, userevents.EventUpdated)
	return updated, nil
}

// DeleteUser marks the user INACTIVE and deactivates every session in one transaction, then
// emits DELETED. Session rows are kept; login and refresh reject the account from then on.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	deleted, err := s.users.SoftDelete(ctx, user.ID, s.now())
	if err != nil {
		return err
	}
	if deleted == nil {
		return ErrUserNotFound
	}
	s.logger.Info("user deleted", zap.String("user_id", deleted.ID))
	s.publish(ctx, deleted, userevents.EventDeleted)
	return nil
}

func (s *AuthService) loadUser(ctx context.Context, userID string) (*userdomain.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Deleted() {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) openSession(ctx context.Context, user *userdomain.User, client ClientInfo) (*AuthResult, error) {
	sess, res, err := s.newSession(user, client)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return res, nil
}

// newSession issues a token pair for user and the ACTIVE session row that holds it.
func (s *AuthService) newSession(user *userdomain.User, client ClientInfo) (*sessiondomain.Session, *AuthResult, error) {
	pair, err := s.tokens.IssuePair(user.ID, string(user.Role))
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	sess := &sessiondomain.Session{
		ID:                 uuid.New().String(),
		UserID:             user.ID,
		AccessTokenDigest:  security.TokenDigest(pair.AccessToken),
		RefreshTokenDigest: security.TokenDigest(pair.RefreshToken),
		DeviceInfo:         orUnknown(client.DeviceInfo),
		IPAddress:          orUnknown(client.IPAddress),
		LoginTime:          now,
		ExpiresAt:          now.Add(s.tokens.AccessTTL()),
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return sess, &AuthResult{
		User:      user,
		Tokens:    pair,
		ExpiresIn: s.tokens.AccessTTL().Milliseconds(),
	}, nil
}

func (s *AuthService) publish(ctx context.Context, u *userdomain.User, t userevents.EventType) {
	if s.publisher == nil {
		return
	}
	snapshot := *u
	s.publisher.Publish(ctx, &snapshot, t)
}

func orUnknown(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return unknownClient
	}
	return v
}

func observe(op string, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultFailed
	}
	metrics.ObserveAuth(op, result)
}
