package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/autohaul/autohaul-api/internal/audit"
	"github.com/autohaul/autohaul-api/internal/types"
	"github.com/autohaul/autohaul-api/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Credentials is the register/login request body
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries an issued JWT
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	Expiration  time.Time `json:"expiration"`
}

// Claims is the JWT claims structure. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// UserID parses the subject claim into a user id
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// Service handles registration, login and token validation
type Service struct {
	db        *Database
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewService creates an authentication service over the users table
func NewService(gormDB *gorm.DB, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates a new agent user and returns a token for it
func (s *Service) Register(creds Credentials) (*types.User, *TokenResponse, error) {
	existing, err := s.db.GetUserByUsername(creds.Username)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &types.User{
		Username:     creds.Username,
		PasswordHash: string(hash),
		Role:         types.RoleAgent,
	}
	if err := s.db.CreateUser(user); err != nil {
		return nil, nil, err
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

// Login verifies the credentials and returns a token
func (s *Service) Login(creds Credentials) (*types.User, *TokenResponse, error) {
	user, err := s.db.GetUserByUsername(creds.Username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

// ValidateToken verifies signature and expiry and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func (s *Service) generateToken(user *types.User) (*TokenResponse, error) {
	expiration := time.Now().Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{AccessToken: signed, Expiration: expiration}, nil
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service  *Service
	recorder *audit.Recorder
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service, recorder *audit.Recorder) *GinHandlers {
	return &GinHandlers{service: service, recorder: recorder}
}

// RegisterHandler handles POST requests to create a new user
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		_, token, err := h.service.Register(creds)
		if errors.Is(err, ErrUsernameTaken) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// LoginHandler handles POST requests to exchange credentials for a token
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		user, token, err := h.service.Login(creds)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		if err == nil {
			h.recorder.Record(c.Request.Context(), user.ID, audit.ActionLogin, map[string]string{
				"username": user.Username,
			})
		}
		response.Handle(c, token, err)
	}
}
