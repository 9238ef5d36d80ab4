package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
	"github.com/harentsoaR/diagnosia-api/internal/utils"
)

const minPasswordLength = 6

var (
	phonePattern = regexp.MustCompile(`^\+\d{8,15}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
	Role      string
	Specialty string
}

type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Specialty *string
}

// Session is a signed token plus the user it was issued for.
type Session struct {
	Token string
	User  *models.User
}

type AuthService struct {
	users    repository.UserRepository
	tokens   *utils.TokenService
	notifier *NotificationService
	logger   *logging.Logger
	now      func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *utils.TokenService, notifier *NotificationService, logger *logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthService{users: users, tokens: tokens, notifier: notifier, logger: logger, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func validateRegistration(in *RegisterInput) (models.Role, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Specialty = strings.TrimSpace(in.Specialty)

	if in.FirstName == "" || in.LastName == "" {
		return "", BadRequest("Nombre y apellido son obligatorios")
	}
	if len(in.Password) < minPasswordLength {
		return "", BadRequest("La contraseña debe tener al menos 6 caracteres")
	}
	if !phonePattern.MatchString(in.Phone) {
		return "", BadRequest("El número de teléfono debe incluir el código de país, por ejemplo +59171234567")
	}
	if in.Email != "" && !emailPattern.MatchString(in.Email) {
		return "", BadRequest("Correo electrónico inválido")
	}

	role := models.RolePatient
	if in.Role != "" {
		r, ok := models.ParseRole(in.Role)
		if !ok || r == models.RoleAdmin {
			return "", BadRequest("Rol inválido")
		}
		role = r
	}
	return role, nil
}

// Register creates an unverified account and texts it a verification code.
// If the SMS cannot be sent the account is deleted again.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	role, err := validateRegistration(&in)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByPhone(ctx, in.Phone); err == nil {
		return nil, Conflict("El número de teléfono ya está registrado")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, Internal("Error al registrar el usuario", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, Internal("Error al registrar el usuario", err)
	}
	code, err := utils.GenerateVerificationCode()
	if err != nil {
		return nil, Internal("Error al registrar el usuario", err)
	}

	now := s.now()
	expires := now.Add(utils.CodeTTL)
	user := &models.User{
		ID:                      primitive.NewObjectID(),
		Email:                   in.Email,
		Password:                hash,
		Role:                    role,
		FirstName:               in.FirstName,
		LastName:                in.LastName,
		Phone:                   in.Phone,
		IsVerified:              false,
		VerificationCode:        code,
		VerificationCodeExpires: &expires,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if role == models.RoleDoctor {
		user.Specialty = in.Specialty
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, Conflict("El número de teléfono o correo ya está registrado")
		}
		return nil, Internal("Error al registrar el usuario", err)
	}

	if !s.notifier.SendVerificationCode(ctx, user.Phone, code) {
		if err := s.users.Delete(ctx, user.ID); err != nil {
			s.logger.Error("compensating delete failed", "user_id", user.ID.Hex(), "error", err)
		}
		return nil, Unavailable("Error al enviar el código de verificación", nil)
	}

	s.logger.Info("user registered", "user_id", user.ID.Hex(), "role", role, "phone", logging.MaskPhone(user.Phone))
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, Internal("Error al generar la sesión", err)
	}
	return &Session{Token: token, User: user}, nil
}

// Login requires a verified account.
func (s *AuthService) Login(ctx context.Context, phone, password string) (*Session, error) {
	user, err := s.users.FindByPhone(ctx, strings.TrimSpace(phone))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, Unauthorized("Credenciales inválidas")
	}
	if err != nil {
		return nil, Internal("Error al iniciar sesión", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, Unauthorized("Credenciales inválidas")
	}
	if !user.IsVerified {
		return nil, Unauthorized("Cuenta no verificada")
	}
	return s.issue(user)
}

// VerifyCode marks the account verified and consumes the code.
func (s *AuthService) VerifyCode(ctx context.Context, phone, code string) (*Session, error) {
	now := s.now()
	phone, code = strings.TrimSpace(phone), strings.TrimSpace(code)
	user, err := s.users.FindByPhoneAndCode(ctx, phone, code, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, BadRequest("Código inválido o expirado")
	}
	if err != nil {
		return nil, Internal("Error al verificar el código", err)
	}
	if !utils.CodeMatches(user.VerificationCode, code, user.VerificationCodeExpires, now) {
		return nil, BadRequest("Código inválido o expirado")
	}

	user.IsVerified = true
	user.VerificationCode = ""
	user.VerificationCodeExpires = nil
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, Internal("Error al verificar el código", err)
	}
	return s.issue(user)
}

// RequestPasswordReset stores and texts a reset code. The code is returned
// so development callers can surface it; production handlers drop it.
func (s *AuthService) RequestPasswordReset(ctx context.Context, phone string) (string, error) {
	user, err := s.users.FindByPhone(ctx, strings.TrimSpace(phone))
	if errors.Is(err, repository.ErrNotFound) {
		return "", NotFound("No existe una cuenta con este número de teléfono")
	}
	if err != nil {
		return "", Internal("Error al procesar la solicitud", err)
	}

	code, err := utils.GenerateVerificationCode()
	if err != nil {
		return "", Internal("Error al procesar la solicitud", err)
	}
	now := s.now()
	expires := now.Add(utils.CodeTTL)
	user.ResetPasswordCode = code
	user.ResetPasswordExpires = &expires
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return "", Internal("Error al procesar la solicitud", err)
	}

	if !s.notifier.SendPasswordResetCode(ctx, user.Phone, code) {
		return "", Unavailable("Error al enviar el código de recuperación", nil)
	}
	return code, nil
}

func (s *AuthService) ConfirmPasswordReset(ctx context.Context, phone, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return BadRequest("La contraseña debe tener al menos 6 caracteres")
	}
	now := s.now()
	phone, code = strings.TrimSpace(phone), strings.TrimSpace(code)
	user, err := s.users.FindByPhoneAndResetCode(ctx, phone, code, now)
	if errors.Is(err, repository.ErrNotFound) {
		return BadRequest("Código inválido o expirado")
	}
	if err != nil {
		return Internal("Error al restablecer la contraseña", err)
	}
	if !utils.CodeMatches(user.ResetPasswordCode, code, user.ResetPasswordExpires, now) {
		return BadRequest("Código inválido o expirado")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return Internal("Error al restablecer la contraseña", err)
	}
	user.Password = hash
	user.ResetPasswordCode = ""
	user.ResetPasswordExpires = nil
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return Internal("Error al restablecer la contraseña", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("Usuario no encontrado")
	}
	if err != nil {
		return nil, Internal("Error al obtener el usuario", err)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, patch ProfileUpdate) (*models.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.FirstName != nil {
		v := strings.TrimSpace(*patch.FirstName)
		if v == "" {
			return nil, BadRequest("El nombre no puede estar vacío")
		}
		user.FirstName = v
	}
	if patch.LastName != nil {
		v := strings.TrimSpace(*patch.LastName)
		if v == "" {
			return nil, BadRequest("El apellido no puede estar vacío")
		}
		user.LastName = v
	}
	if patch.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*patch.Email))
		if v != "" && !emailPattern.MatchString(v) {
			return nil, BadRequest("Correo electrónico inválido")
		}
		user.Email = v
	}
	if patch.Specialty != nil && user.Role == models.RoleDoctor {
		user.Specialty = strings.TrimSpace(*patch.Specialty)
	}

	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, Conflict("El correo electrónico ya está registrado")
		}
		return nil, Internal("Error al actualizar el usuario", err)
	}
	return user, nil
}

func (s *AuthService) ListDoctors(ctx context.Context, specialty string) ([]models.UserSummary, error) {
	doctors, err := s.users.ListByRole(ctx, models.RoleDoctor, strings.TrimSpace(specialty))
	if err != nil {
		return nil, Internal("Error al obtener la lista de médicos", err)
	}
	out := make([]models.UserSummary, 0, len(doctors))
	for i := range doctors {
		out = append(out, *doctors[i].Summary())
	}
	return out, nil
}

// ListUsers returns every account, or only those with role when it is set.
func (s *AuthService) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	var (
		users []models.User
		err   error
	)
	if role == "" {
		users, err = s.users.List(ctx)
	} else {
		r, ok := models.ParseRole(role)
		if !ok {
			return nil, BadRequest("Rol inválido")
		}
		users, err = s.users.ListByRole(ctx, r, "")
	}
	if err != nil {
		return nil, Internal("Error al obtener los usuarios", err)
	}
	return users, nil
}
