package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var validate = validator.New()

var validRoles = map[string]bool{
	models.RoleAdmin:   true,
	models.RoleManager: true,
	models.RoleStaff:   true,
	models.RoleChef:    true,
	models.RoleCashier: true,
}

type RegisterInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// UserService handles staff accounts and is the token authority for every
// other service.
type UserService struct {
	db     *gorm.DB
	signer *utils.TokenSigner
}

func NewUserService(db *gorm.DB, signer *utils.TokenSigner) *UserService {
	return &UserService{db: db, signer: signer}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, utils.NewValidationError("invalid email address")
	}
	if len(in.Password) < 6 {
		return nil, utils.NewValidationError("password must be at least 6 characters")
	}
	role := in.Role
	if role == "" {
		role = models.RoleStaff
	}
	if !validRoles[role] {
		return nil, utils.NewValidationError("invalid role %q", role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := models.User{Name: strings.TrimSpace(in.Name), Email: email, Password: string(hashed), Role: role}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if utils.IsDuplicateKey(err) {
			return nil, utils.NewPersistenceError("email already registered", err)
		}
		return nil, utils.PersistenceError("user", err)
	}
	return &user, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewUnauthorizedError("invalid email or password")
		}
		return nil, utils.PersistenceError("user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, utils.NewUnauthorizedError("invalid email or password")
	}

	token, err := s.signer.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithField("user_id", user.ID).Info("user logged in")
	return &LoginResult{Token: token, User: &user}, nil
}

func (s *UserService) Logout(token string) {
	s.signer.Blacklist(token)
}

// Verify checks a token locally and loads its user.
func (s *UserService) Verify(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.signer.ParseToken(token)
	if err != nil {
		return nil, &utils.AppError{Kind: utils.KindUnauthorized, Message: "invalid or expired token", Status: http.StatusUnauthorized, Err: err}
	}
	user, err := s.GetUser(ctx, claims.UserID)
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			return nil, utils.NewUnauthorizedError("user no longer exists")
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, utils.PersistenceError("user", err)
	}
	return &user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, utils.PersistenceError("user", err)
	}
	return users, nil
}
