package services

import (
	"errors"
	"fmt"
	"time"

	"obrolan/internal/models"
	"obrolan/internal/repositories"

	"github.com/dgrijalva/jwt-go"
)

// Errors surfaced by AuthService. Handlers map them to HTTP statuses.
var (
	// ErrUsernameTaken is returned by Signup when the username is already
	// registered, whether caught by the pre-insert check or by the unique
	// index during the write.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials is returned by Login for both an unknown
	// username and a wrong password, deliberately not distinguishing the
	// two.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// SessionCookieName is the cookie carrying the session token. Issuance and
// clearing must use the same name.
const SessionCookieName = "jwt"

// sessionTTL is how long an issued session token (and its cookie) is valid.
const sessionTTL = 15 * 24 * time.Hour

const (
	maleAvatarTemplate   = "https://avatar.iran.liara.run/public/boy?username=%s"
	femaleAvatarTemplate = "https://avatar.iran.liara.run/public/girl?username=%s"
)

// AuthService handles signup, login, and session-token issuance.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
	}
}

// TokenTTL returns the session token lifetime, used by handlers to set the
// cookie Max-Age.
func (s *AuthService) TokenTTL() time.Duration {
	return sessionTTL
}

// Signup registers a new user: it checks username availability, hashes the
// password, derives the avatar URL, and persists the record. The existence
// check runs before any bcrypt work so a taken name costs nothing; the
// database unique index backstops the check against concurrent signups.
func (s *AuthService) Signup(fullName, username, password, gender string) (*models.User, error) {
	if _, err := s.userRepo.GetByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username availability: %w", err)
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		FullName:   fullName,
		Username:   username,
		Password:   hashedPassword,
		Gender:     gender,
		ProfilePic: avatarURL(username, gender),
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

// Login authenticates a username/password pair. Unknown usernames and wrong
// passwords both yield ErrInvalidCredentials so the response cannot be used
// to enumerate accounts.
func (s *AuthService) Login(username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !VerifyPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUserByID loads the user a validated session token refers to.
func (s *AuthService) GetUserByID(id string) (*models.User, error) {
	return s.userRepo.GetByID(id)
}

// IssueToken mints a signed session token for the given user ID.
func (s *AuthService) IssueToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(sessionTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken checks the signature and expiry of a session token and
// returns the user ID it was issued for.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("invalid token: missing user_id claim")
	}
	return userID, nil
}

// avatarURL derives the profile picture URL from the username and gender.
// Computed once at signup and stored on the record.
func avatarURL(username, gender string) string {
	if gender == models.GenderFemale {
		return fmt.Sprintf(femaleAvatarTemplate, username)
	}
	return fmt.Sprintf(maleAvatarTemplate, username)
}
