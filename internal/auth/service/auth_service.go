package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"citizen-services/auth-service/internal/audit"
	"citizen-services/auth-service/internal/platform/rbac"
	"citizen-services/auth-service/internal/security"
	sessiondomain "citizen-services/auth-service/internal/session/domain"
	tokendomain "citizen-services/auth-service/internal/token/domain"
	userdomain "citizen-services/auth-service/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP codes.
var (
	ErrValidation         = errors.New("validation failed")
	ErrIdentifierTaken    = errors.New("identifier already registered")
	ErrPhoneTaken         = errors.New("phone number already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountInactive    = errors.New("account is not active")
	ErrTokenReuseDetected = errors.New("refresh token reuse detected; all sessions revoked")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	FindActiveByIdentifier(ctx context.Context, identifier string) (*userdomain.User, error)
	GetByPhone(ctx context.Context, phone string) (*userdomain.User, error)
	// CreateWithRole creates the user and its initial role atomically.
	CreateWithRole(ctx context.Context, u *userdomain.User, roleName string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	RecordLogin(ctx context.Context, id string) error
	IncrementFailedAttempts(ctx context.Context, id string) error
	GetRoleNames(ctx context.Context, userID string) ([]string, error)
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id, reason string) error
	RevokeAllByUser(ctx context.Context, userID, reason string) error
	UpdateLastActive(ctx context.Context, id string, at time.Time) error
}

// TokenRepo is the minimal refresh-token repository needed by the auth service.
type TokenRepo interface {
	GetByHash(ctx context.Context, tokenHash string) (*tokendomain.RefreshToken, error)
	Create(ctx context.Context, t *tokendomain.RefreshToken) error
	Consume(ctx context.Context, id string) (bool, error)
	SetReplacedBy(ctx context.Context, id, successorID string) error
	RevokeFamily(ctx context.Context, family, reason string) error
}

// LockoutGuard is the progressive-lockout counter consumed by Login.
type LockoutGuard interface {
	RecordFailure(ctx context.Context, identifier string) (int64, error)
	IsLocked(ctx context.Context, identifier string) (bool, error)
	Reset(ctx context.Context, identifier string) error
}

// Blocklist records revoked access tokens until their natural expiry.
type Blocklist interface {
	Block(ctx context.Context, tokenHash string, ttl time.Duration) error
}

// AuthService implements register, login, refresh rotation, logout, and
// password change for citizen accounts.
type AuthService struct {
	userRepo    UserRepo
	sessionRepo SessionRepo
	tokenRepo   TokenRepo
	lockout     LockoutGuard
	blocklist   Blocklist
	hasher      *security.Hasher
	tokens      *security.TokenIssuer
	emitter     audit.Emitter
	maxAttempts int
	sessionTTL  time.Duration
}

// NewAuthService returns an AuthService with the given dependencies. emitter
// may be nil; audit events are then dropped.
func NewAuthService(
	userRepo UserRepo,
	sessionRepo SessionRepo,
	tokenRepo TokenRepo,
	lockout LockoutGuard,
	blocklist Blocklist,
	hasher *security.Hasher,
	tokens *security.TokenIssuer,
	emitter audit.Emitter,
	maxAttempts int,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokenRepo:   tokenRepo,
		lockout:     lockout,
		blocklist:   blocklist,
		hasher:      hasher,
		tokens:      tokens,
		emitter:     emitter,
		maxAttempts: maxAttempts,
		sessionTTL:  sessionTTL,
	}
}

// RegisterInput is the request to create a citizen account.
type RegisterInput struct {
	Identifier     string
	IdentifierType string
	Phone          string
	Email          string
	Password       string
	DateOfBirth    time.Time
	IPAddress      string
}

// Register creates a user in pending_verification status with the default
// CITIZEN role. Login requires an active account; verification happens out of
// band.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*userdomain.User, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if err := validateIdentifier(identifier, in.IdentifierType); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.FindActiveByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrIdentifierTaken
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		byPhone, err := s.userRepo.GetByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		if byPhone != nil {
			return nil, ErrPhoneTaken
		}
	}
	hashed, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:             uuid.NewString(),
		Identifier:     identifier,
		IdentifierType: in.IdentifierType,
		Phone:          strings.TrimSpace(in.Phone),
		Email:          strings.TrimSpace(strings.ToLower(in.Email)),
		PasswordHash:   hashed,
		DateOfBirth:    in.DateOfBirth,
		Status:         userdomain.StatusPendingVerification,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.userRepo.CreateWithRole(ctx, user, string(rbac.RoleCitizen)); err != nil {
		return nil, err
	}
	ev := audit.NewEvent(audit.ActionCitizenCreated)
	ev.UserID = user.ID
	ev.IPAddress = in.IPAddress
	ev.Metadata = map[string]string{"identifierType": in.IdentifierType}
	audit.EmitAsync(s.emitter, ev)
	return user, nil
}

// LoginInput is the credential set for Login.
type LoginInput struct {
	Identifier  string
	Password    string
	DateOfBirth time.Time
	IPAddress   string
	UserAgent   string
}

// LoginResult holds the outcome of Login or Refresh.
type LoginResult struct {
	UserID      string
	SessionID   string
	CitizenID   string
	Roles       []string
	Permissions []string
	Pair        *security.TokenPair
}

// Login verifies identifier + password + date of birth, creates a session
// with a fresh token family, and returns the token pair. Password and
// date-of-birth failures are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	locked, err := s.lockout.IsLocked(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if locked {
		ev := audit.NewEvent(audit.ActionAccountLocked)
		ev.Level = audit.LevelWarning
		ev.IPAddress = in.IPAddress
		audit.EmitAsync(s.emitter, ev)
		return nil, ErrAccountLocked
	}

	user, err := s.userRepo.FindActiveByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	// The dummy compare keeps response time uniform whether or not the
	// identifier exists.
	var compareErr error
	if user != nil {
		compareErr = s.hasher.Compare(user.PasswordHash, []byte(in.Password))
	} else {
		compareErr = s.hasher.CompareDummy([]byte(in.Password))
	}
	if compareErr != nil {
		return nil, s.failLogin(ctx, identifier, user, in.IPAddress)
	}

	switch user.Status {
	case userdomain.StatusActive:
	case userdomain.StatusLocked:
		return nil, ErrAccountLocked
	default:
		return nil, ErrAccountInactive
	}

	if !user.DateOfBirthEqual(in.DateOfBirth) {
		return nil, s.failLogin(ctx, identifier, user, in.IPAddress)
	}

	if err := s.lockout.Reset(ctx, identifier); err != nil {
		return nil, err
	}

	roleNames, err := s.userRepo.GetRoleNames(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	roles, permissions := resolveRoles(roleNames)

	now := time.Now().UTC()
	session := &sessiondomain.Session{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		TokenFamily: uuid.NewString(),
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user.ID, session.ID, user.CitizenID, session.TokenFamily, roles, permissions)
	if err != nil {
		return nil, err
	}
	record := &tokendomain.RefreshToken{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		UserID:      user.ID,
		TokenFamily: session.TokenFamily,
		TokenHash:   security.HashToken(pair.RefreshToken),
		ExpiresAt:   now.Add(s.tokens.RefreshTTL()),
		CreatedAt:   now,
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return nil, err
	}
	if err := s.userRepo.RecordLogin(ctx, user.ID); err != nil {
		log.Printf("auth: record login for %s failed: %v", user.ID, err)
	}

	ev := audit.NewEvent(audit.ActionLogin)
	ev.UserID = user.ID
	ev.SessionID = session.ID
	ev.IPAddress = in.IPAddress
	ev.UserAgent = in.UserAgent
	audit.EmitAsync(s.emitter, ev)

	return &LoginResult{
		UserID:      user.ID,
		SessionID:   session.ID,
		CitizenID:   user.CitizenID,
		Roles:       roles,
		Permissions: permissions,
		Pair:        pair,
	}, nil
}

// failLogin records a failed attempt against the lockout guard and emits the
// audit trail. Always returns ErrInvalidCredentials unless the guard itself
// fails closed.
func (s *AuthService) failLogin(ctx context.Context, identifier string, user *userdomain.User, ip string) error {
	count, err := s.lockout.RecordFailure(ctx, identifier)
	if err != nil {
		return err
	}
	if user != nil {
		if err := s.userRepo.IncrementFailedAttempts(ctx, user.ID); err != nil {
			log.Printf("auth: increment failed attempts for %s failed: %v", user.ID, err)
		}
	}
	ev := audit.NewEvent(audit.ActionLoginFailed)
	if user != nil {
		ev.UserID = user.ID
	}
	ev.IPAddress = ip
	audit.EmitAsync(s.emitter, ev)
	if count >= int64(s.maxAttempts) {
		lockedEv := audit.NewEvent(audit.ActionAccountLocked)
		lockedEv.Level = audit.LevelWarning
		lockedEv.IPAddress = ip
		audit.EmitAsync(s.emitter, lockedEv)
	}
	return ErrInvalidCredentials
}

// Refresh exchanges a refresh token for a fresh pair, rotating within the
// same session and family. A token presented twice, or one whose record is
// missing, is treated as replay: the whole family and its session are revoked
// before the error is returned.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken, ipAddress string) (*LoginResult, error) {
	claims, err := s.tokens.VerifyRefresh(rawRefreshToken)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	record, err := s.tokenRepo.GetByHash(ctx, security.HashToken(rawRefreshToken))
	if err != nil {
		return nil, err
	}
	if record == nil {
		// A verified token with no record means the record was already
		// rotated away and pruned, or forged alongside a leaked secret.
		// Either way the family is burned.
		return nil, s.handleReuse(ctx, claims.Family, claims.Subject, ipAddress)
	}
	if record.UsedAt != nil {
		return nil, s.handleReuse(ctx, record.TokenFamily, record.UserID, ipAddress)
	}
	if record.RevokedAt != nil {
		return nil, security.ErrTokenInvalid
	}
	if now.After(record.ExpiresAt) {
		return nil, security.ErrTokenExpired
	}

	session, err := s.sessionRepo.GetByID(ctx, record.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Revoked() {
		return nil, security.ErrTokenInvalid
	}
	if session.Expired(now) {
		return nil, security.ErrTokenExpired
	}

	// Single-use consume: exactly one concurrent exchange can win. A lost
	// race is indistinguishable from replay and is punished the same way.
	won, err := s.tokenRepo.Consume(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, s.handleReuse(ctx, record.TokenFamily, record.UserID, ipAddress)
	}

	user, err := s.userRepo.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.StatusActive {
		return nil, ErrAccountInactive
	}
	roleNames, err := s.userRepo.GetRoleNames(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	roles, permissions := resolveRoles(roleNames)

	pair, err := s.tokens.IssuePair(user.ID, session.ID, user.CitizenID, record.TokenFamily, roles, permissions)
	if err != nil {
		return nil, err
	}
	successor := &tokendomain.RefreshToken{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		UserID:      user.ID,
		TokenFamily: record.TokenFamily,
		TokenHash:   security.HashToken(pair.RefreshToken),
		ExpiresAt:   now.Add(s.tokens.RefreshTTL()),
		CreatedAt:   now,
	}
	if err := s.tokenRepo.Create(ctx, successor); err != nil {
		return nil, err
	}
	if err := s.tokenRepo.SetReplacedBy(ctx, record.ID, successor.ID); err != nil {
		log.Printf("auth: back-link rotation %s -> %s failed: %v", record.ID, successor.ID, err)
	}
	if err := s.sessionRepo.UpdateLastActive(ctx, session.ID, now); err != nil {
		log.Printf("auth: touch session %s failed: %v", session.ID, err)
	}

	ev := audit.NewEvent(audit.ActionTokenRefreshed)
	ev.UserID = user.ID
	ev.SessionID = session.ID
	ev.IPAddress = ipAddress
	audit.EmitAsync(s.emitter, ev)

	return &LoginResult{
		UserID:      user.ID,
		SessionID:   session.ID,
		CitizenID:   user.CitizenID,
		Roles:       roles,
		Permissions: permissions,
		Pair:        pair,
	}, nil
}

// handleReuse revokes the family and its session, emits the audit trail, and
// returns ErrTokenReuseDetected. Revocation failure is the error the caller
// sees; a replay must never succeed quietly.
func (s *AuthService) handleReuse(ctx context.Context, family, userID, ip string) error {
	if err := s.tokenRepo.RevokeFamily(ctx, family, sessiondomain.ReasonTokenReuse); err != nil {
		return err
	}
	ev := audit.NewEvent(audit.ActionTokenReuse)
	ev.Level = audit.LevelCritical
	ev.UserID = userID
	ev.IPAddress = ip
	ev.Metadata = map[string]string{"family": family}
	audit.EmitAsync(s.emitter, ev)
	return ErrTokenReuseDetected
}

// Logout revokes the current session, or every session the user owns when
// all is true, and blocklists the presented access token for the remainder of
// its lifetime.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID, rawAccessToken string, all bool) error {
	if claims, err := s.tokens.VerifyAccess(rawAccessToken); err == nil && claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := s.blocklist.Block(ctx, security.HashToken(rawAccessToken), ttl); err != nil {
			log.Printf("auth: blocklist on logout failed: %v", err)
		}
	}

	if all {
		if err := s.sessionRepo.RevokeAllByUser(ctx, userID, sessiondomain.ReasonUserLogoutAll); err != nil {
			return err
		}
	} else {
		if err := s.sessionRepo.Revoke(ctx, sessionID, sessiondomain.ReasonUserLogout); err != nil {
			return err
		}
	}

	ev := audit.NewEvent(audit.ActionLogout)
	ev.UserID = userID
	ev.SessionID = sessionID
	audit.EmitAsync(s.emitter, ev)
	return nil
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every session so all devices must log in again.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	newHash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return err
	}
	if err := s.sessionRepo.RevokeAllByUser(ctx, userID, sessiondomain.ReasonPasswordChanged); err != nil {
		return err
	}

	ev := audit.NewEvent(audit.ActionPasswordChanged)
	ev.UserID = userID
	ev.IPAddress = ipAddress
	audit.EmitAsync(s.emitter, ev)
	return nil
}

// resolveRoles filters unknown role names and resolves the permission union.
func resolveRoles(names []string) (roles, permissions []string) {
	roles = make([]string, 0, len(names))
	for _, n := range names {
		if rbac.ValidRole(n) {
			roles = append(roles, n)
		}
	}
	return roles, rbac.Resolve(roles)
}

var (
	nidPattern      = regexp.MustCompile(`^(\d{10}|\d{17})$`)
	birthRegPattern = regexp.MustCompile(`^\d{17}$`)
)

func validateIdentifier(identifier, identifierType string) error {
	switch identifierType {
	case "nid":
		if !nidPattern.MatchString(identifier) {
			return fmt.Errorf("%w: national ID must be 10 or 17 digits", ErrValidation)
		}
	case "birth_reg":
		if !birthRegPattern.MatchString(identifier) {
			return fmt.Errorf("%w: birth registration number must be 17 digits", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: identifier type must be nid or birth_reg", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	if len(password) > 128 {
		return fmt.Errorf("%w: password must be at most 128 characters", ErrValidation)
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		case strings.ContainsRune(`!@#$%^&*(),.?":{}|<>`, r):
			hasSymbol = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("%w: password must contain at least one uppercase letter", ErrValidation)
	}
	if !hasLower {
		return fmt.Errorf("%w: password must contain at least one lowercase letter", ErrValidation)
	}
	if !hasNumber {
		return fmt.Errorf("%w: password must contain at least one number", ErrValidation)
	}
	if !hasSymbol {
		return fmt.Errorf("%w: password must contain at least one special character", ErrValidation)
	}
	return nil
}
