package handler

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"imagevault/internal/model"
	"imagevault/internal/service"
)

// MockAuthService is a mock implementation of service.AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, reg service.Registration) (string, error) {
	args := m.Called(ctx, reg)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, newPassword, repeatPassword, resetToken string) error {
	args := m.Called(ctx, newPassword, repeatPassword, resetToken)
	return args.Error(0)
}

func (m *MockAuthService) Profile(ctx context.Context, bearer string) (*service.Profile, error) {
	args := m.Called(ctx, bearer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Profile), args.Error(1)
}

// MockAssetService is a mock implementation of service.AssetService.
type MockAssetService struct {
	mock.Mock
}

func (m *MockAssetService) Fetch(ctx context.Context, bearer, filename string) (*model.Asset, error) {
	args := m.Called(ctx, bearer, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockAssetService) Upload(ctx context.Context, bearer, origin string, file service.File) (*service.AssetResponse, error) {
	args := m.Called(ctx, bearer, origin, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AssetResponse), args.Error(1)
}

func (m *MockAssetService) UploadMany(ctx context.Context, bearer, origin string, files []service.File) ([]service.AssetResponse, error) {
	args := m.Called(ctx, bearer, origin, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.AssetResponse), args.Error(1)
}

func (m *MockAssetService) ChangeImage(ctx context.Context, bearer, origin, filename string, file service.File) (*service.AssetResponse, error) {
	args := m.Called(ctx, bearer, origin, filename, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AssetResponse), args.Error(1)
}

func (m *MockAssetService) Delete(ctx context.Context, bearer, filename string) (string, error) {
	args := m.Called(ctx, bearer, filename)
	return args.String(0), args.Error(1)
}

func (m *MockAssetService) ListByDate(ctx context.Context, bearer, origin string, date time.Time, page int, order *string) ([]service.AssetResponse, error) {
	args := m.Called(ctx, bearer, origin, date, page, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.AssetResponse), args.Error(1)
}

func (m *MockAssetService) SortAll(ctx context.Context, bearer, origin, order string) ([]service.AssetResponse, error) {
	args := m.Called(ctx, bearer, origin, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.AssetResponse), args.Error(1)
}

const testBearer = "Bearer test-token"

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// serve runs h against req and lets echo's error handler render any error.
func serve(e *echo.Echo, req *http.Request, h echo.HandlerFunc, names []string, values []string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(names) > 0 {
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

type part struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(method, target string, parts ...part) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		h.Set("Content-Type", p.contentType)
		pw, _ := w.CreatePart(h)
		_, _ = pw.Write(p.data)
	}
	_ = w.Close()

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, testBearer)
	return req
}
