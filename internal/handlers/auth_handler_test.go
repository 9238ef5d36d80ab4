package handlers

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
)

var sixDigits = regexp.MustCompile(`\b(\d{6})\b`)

func registerBody(phone string) map[string]any {
	return map[string]any{
		"firstName": "Ana",
		"lastName":  "Quispe",
		"phone":     phone,
		"password":  "secret123",
		"role":      "patient",
	}
}

func TestRegisterThenVerify(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.json(http.MethodPost, "/api/v1/auth/register", "", registerBody("+59171234567"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "secret123")

	res := decode(t, rec)
	assert.True(t, res.Success)
	assert.Empty(t, res.Token, "register must not issue a session")
	assert.NotEmpty(t, res.Message)

	match := sixDigits.FindStringSubmatch(api.sender.last())
	require.Len(t, match, 2, "verification SMS should carry a 6-digit code")
	code := match[1]

	rec = api.json(http.MethodPost, "/api/v1/auth/verify-code", "", map[string]string{"phone": "+59171234567", "code": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = decode(t, rec)
	assert.NotEmpty(t, res.Token)
	require.NotNil(t, res.User)
	assert.True(t, res.User.IsVerified)
	assert.Equal(t, models.RolePatient, res.User.Role)

	rec = api.json(http.MethodPost, "/api/v1/auth/verify-code", "", map[string]string{"phoneNumber": "+59171234567", "code": code})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decode(t, rec).Success)
}

func TestRegisterRollsBackWhenSMSFails(t *testing.T) {
	api := newTestAPI(t, false)
	api.sender.fail = true

	rec := api.json(http.MethodPost, "/api/v1/auth/register", "", registerBody("+59171234567"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err := api.repos.Users.FindByPhone(context.Background(), "+59171234567")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t, false)
	api.seedUser(models.RolePatient, "Luis", "+59170000001")

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"missing country code", registerBody("71234567"), http.StatusBadRequest},
		{"duplicate phone", registerBody("+59170000001"), http.StatusConflict},
		{"admin self registration", func() map[string]any {
			b := registerBody("+59170000009")
			b["role"] = "admin"
			return b
		}(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.json(http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := api.request(http.MethodPost, "/api/v1/auth/register", "", "application/json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t, false)
	api.seedUser(models.RoleDoctor, "Carla", "+59170000002")

	rec := api.json(http.MethodPost, "/api/v1/auth/register", "", registerBody("+59171234567"))
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name     string
		phone    string
		password string
		status   int
	}{
		{"unknown phone", "+59179999999", "secret123", http.StatusUnauthorized},
		{"wrong password", "+59170000002", "nope-nope", http.StatusUnauthorized},
		{"unverified account", "+59171234567", "secret123", http.StatusUnauthorized},
		{"missing fields", "", "", http.StatusBadRequest},
		{"verified doctor", "+59170000002", "secret123", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.json(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"phone": tt.phone, "password": tt.password})
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				res := decode(t, rec)
				assert.NotEmpty(t, res.Token)
				assert.Equal(t, models.RoleDoctor, res.User.Role)
			}
		})
	}
}

func TestPasswordReset(t *testing.T) {
	api := newTestAPI(t, true)
	api.seedUser(models.RolePatient, "Luis", "+59170000001")

	rec := api.json(http.MethodPost, "/api/v1/auth/reset-password", "", map[string]string{"phone": "+59179999999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.json(http.MethodPost, "/api/v1/auth/reset-password", "", map[string]string{"phone": "+59170000001"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	code := decode(t, rec).Code
	require.Len(t, code, 6, "development mode echoes the reset code")
	assert.Contains(t, api.sender.last(), code)

	rec = api.json(http.MethodPost, "/api/v1/auth/reset-password-confirm", "", map[string]string{
		"phone": "+59170000001", "code": "000000", "newPassword": "brandnew1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.json(http.MethodPost, "/api/v1/auth/reset-password-confirm", "", map[string]string{
		"phone": "+59170000001", "code": code, "newPassword": "brandnew1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.json(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"phone": "+59170000001", "password": "brandnew1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResetCodeHiddenOutsideDevMode(t *testing.T) {
	api := newTestAPI(t, false)
	api.seedUser(models.RolePatient, "Luis", "+59170000001")

	rec := api.json(http.MethodPost, "/api/v1/auth/reset-password", "", map[string]string{"phone": "+59170000001"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec).Code)
}

func TestMeAndUpdateMe(t *testing.T) {
	api := newTestAPI(t, false)
	user, token := api.seedUser(models.RolePatient, "Luis", "+59170000001")

	assert.Equal(t, http.StatusUnauthorized, api.json(http.MethodGet, "/api/v1/auth/me", "", nil).Code)

	me := decodeData[models.User](t, api.json(http.MethodGet, "/api/v1/auth/me", token, nil))
	assert.Equal(t, user.ID, me.ID)
	assert.Empty(t, me.Password)

	rec := api.json(http.MethodPut, "/api/v1/auth/me", token, map[string]string{"firstName": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	updated := decodeData[models.User](t, api.json(http.MethodPut, "/api/v1/auth/me", token, map[string]string{
		"firstName": "Luisa",
		"email":     "Luisa@Example.com",
	}))
	assert.Equal(t, "Luisa", updated.FirstName)
	assert.Equal(t, "luisa@example.com", updated.Email)
	assert.Equal(t, "Test", updated.LastName)
}

func TestAdminUsers(t *testing.T) {
	api := newTestAPI(t, false)
	_, patientToken := api.seedUser(models.RolePatient, "Luis", "+59170000001")
	api.seedUser(models.RoleDoctor, "Carla", "+59170000002")
	_, adminToken := api.seedUser(models.RoleAdmin, "Root", "+59170000003")

	assert.Equal(t, http.StatusForbidden, api.json(http.MethodGet, "/api/v1/admin/users", patientToken, nil).Code)

	all := decodeData[[]models.User](t, api.json(http.MethodGet, "/api/v1/admin/users", adminToken, nil))
	assert.Len(t, all, 3)

	doctors := decodeData[[]models.User](t, api.json(http.MethodGet, "/api/v1/admin/users?role=doctor", adminToken, nil))
	require.Len(t, doctors, 1)
	assert.Equal(t, "Carla", doctors[0].FirstName)

	assert.Equal(t, http.StatusBadRequest, api.json(http.MethodGet, "/api/v1/admin/users?role=nurse", adminToken, nil).Code)
}
