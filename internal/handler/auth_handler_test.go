package handler

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"imagevault/internal/errors"
	"imagevault/internal/service"
)

const registerBody = `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"Passw0rd!","repeatPassword":"Passw0rd!"}`

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		setupMock    func(*MockAuthService)
		expectedCode int
		expectedBody string
	}{
		{
			name: "created",
			body: registerBody,
			setupMock: func(m *MockAuthService) {
				m.On("Register", mock.Anything, service.Registration{
					FirstName:      "Ada",
					LastName:       "Lovelace",
					Email:          "ada@example.com",
					Password:       "Passw0rd!",
					RepeatPassword: "Passw0rd!",
				}).Return("signed", nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: `{"token":"signed"}`,
		},
		{
			name:         "malformed body",
			body:         `{"email":`,
			setupMock:    func(m *MockAuthService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `"code":"INVALID_REQUEST"`,
		},
		{
			name:         "weak password",
			body:         `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"weak","repeatPassword":"weak"}`,
			setupMock:    func(m *MockAuthService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `"code":"VALIDATION_ERROR"`,
		},
		{
			name: "email taken",
			body: registerBody,
			setupMock: func(m *MockAuthService) {
				m.On("Register", mock.Anything, mock.Anything).
					Return("", errors.AlreadyExists("User with that email already exists"))
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"error":"User with that email already exists","code":"ALREADY_EXISTS"}`,
		},
		{
			name: "password mismatch",
			body: registerBody,
			setupMock: func(m *MockAuthService) {
				m.On("Register", mock.Anything, mock.Anything).
					Return("", errors.PasswordMismatch("Password do not match"))
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `"code":"PASSWORD_MISMATCH"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAuthService)
			tt.setupMock(svc)
			h := NewAuthHandler(svc)

			rec := serve(newEcho(), jsonRequest(http.MethodPost, "/api/v1/user/register", tt.body), h.Register, nil, nil)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name         string
		setupMock    func(*MockAuthService)
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok",
			setupMock: func(m *MockAuthService) {
				m.On("Login", mock.Anything, "ada@example.com", "Passw0rd!").Return("signed", nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"token":"signed"}`,
		},
		{
			name: "unknown email",
			setupMock: func(m *MockAuthService) {
				m.On("Login", mock.Anything, mock.Anything, mock.Anything).
					Return("", errors.NotFound("User with that email does not exist"))
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `"code":"NOT_FOUND"`,
		},
		{
			name: "wrong password",
			setupMock: func(m *MockAuthService) {
				m.On("Login", mock.Anything, mock.Anything, mock.Anything).
					Return("", oops.Code(errors.CodeInvalidCredentials).Errorf("Bad credentials"))
			},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `"code":"INVALID_CREDENTIALS"`,
		},
		{
			name: "store failure hides internals",
			setupMock: func(m *MockAuthService) {
				m.On("Login", mock.Anything, mock.Anything, mock.Anything).
					Return("", stderrors.New("dial tcp 10.0.0.5:3306: refused"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `"code":"INTERNAL_ERROR"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAuthService)
			tt.setupMock(svc)
			h := NewAuthHandler(svc)

			body := `{"email":"ada@example.com","password":"Passw0rd!"}`
			rec := serve(newEcho(), jsonRequest(http.MethodPost, "/api/v1/user/login", body), h.Login, nil, nil)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			assert.NotContains(t, rec.Body.String(), "10.0.0.5")
			svc.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	svc := new(MockAuthService)
	svc.On("ForgotPassword", mock.Anything, "ada@example.com").Return(nil).Once()
	svc.On("ForgotPassword", mock.Anything, "ghost@example.com").
		Return(errors.NotFound("User with that email does not exist")).Once()
	h := NewAuthHandler(svc)
	e := newEcho()

	rec := serve(e, jsonRequest(http.MethodPost, "/api/v1/user/forgot-password", `{"email":"ada@example.com"}`), h.ForgotPassword, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Email has been sent"}`, rec.Body.String())

	rec = serve(e, jsonRequest(http.MethodPost, "/api/v1/user/forgot-password", `{"email":"ghost@example.com"}`), h.ForgotPassword, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.AssertExpectations(t)
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	body := `{"password":"N3wPass!","repeatPassword":"N3wPass!"}`

	tests := []struct {
		name         string
		target       string
		setupMock    func(*MockAuthService)
		expectedCode int
		expectedBody string
	}{
		{
			name:   "reset",
			target: "/api/v1/user/reset-password?resetToken=abc",
			setupMock: func(m *MockAuthService) {
				m.On("ResetPassword", mock.Anything, "N3wPass!", "N3wPass!", "abc").Return(nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"message":"Password has been reset"}`,
		},
		{
			name:         "missing token",
			target:       "/api/v1/user/reset-password",
			setupMock:    func(m *MockAuthService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `"code":"VALIDATION_ERROR"`,
		},
		{
			name:   "unknown token",
			target: "/api/v1/user/reset-password?resetToken=nope",
			setupMock: func(m *MockAuthService) {
				m.On("ResetPassword", mock.Anything, mock.Anything, mock.Anything, "nope").
					Return(errors.InvalidToken("Invalid password reset token"))
			},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `"code":"INVALID_TOKEN"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAuthService)
			tt.setupMock(svc)
			h := NewAuthHandler(svc)

			rec := serve(newEcho(), jsonRequest(http.MethodPost, tt.target, body), h.ResetPassword, nil, nil)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestUserHandler_Me(t *testing.T) {
	svc := new(MockAuthService)
	svc.On("Profile", mock.Anything, testBearer).Return(&service.Profile{
		ID:          "b7c1",
		Email:       "ada@example.com",
		Role:        "USER",
		Authorities: []string{"USER"},
	}, nil)
	h := NewUserHandler(svc)

	req := jsonRequest(http.MethodGet, "/api/v1/user/me", "")
	req.Header.Set("Authorization", testBearer)
	rec := serve(newEcho(), req, h.Me, nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)
	assert.Contains(t, rec.Body.String(), `"authorities":["USER"]`)
}
