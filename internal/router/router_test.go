package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/peer-support/internal/contentstore"
	"github.com/iliyamo/peer-support/internal/metrics"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository/memstore"
	"github.com/iliyamo/peer-support/internal/service"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type session struct {
	User         model.PublicUser `json:"user"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
}

type testServer struct {
	t       *testing.T
	e       *echo.Echo
	content *contentstore.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	content := contentstore.NewMemory()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := service.New(service.Deps{Store: memstore.New(), Content: content, Metrics: m}, service.Options{
		AccessSecret:          "a-secret",
		RefreshSecret:         "r-secret",
		BcryptCost:            bcrypt.MinCost,
		StrictMessageStatus:   true,
		AdminSeesAllResponses: true,
	})
	_, err := svc.Directory.CreateAdmin(context.Background(), service.AdminInput{
		FullName: "Root", Email: "root@example.com", Password: "rootpass1", Gender: model.GenderOther,
	})
	require.NoError(t, err)

	e := New(Deps{Svc: svc, Metrics: m, Gatherer: reg, MaxUpload: 1 << 20})
	return &testServer{t: t, e: e, content: content}
}

type part struct {
	name, filename, contentType string
	body                        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.name, f.filename))
		h.Set("Content-Type", f.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func pngPart() part {
	return part{name: "profilePhoto", filename: "me.png", contentType: "image/png", body: []byte("png")}
}

func (s *testServer) do(req *http.Request, token string) (*httptest.ResponseRecorder, apiEnvelope) {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	var env apiEnvelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (s *testServer) json(method, path, token string, body any) (*httptest.ResponseRecorder, apiEnvelope) {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return s.do(req, token)
}

func (s *testServer) multipart(path, token string, fields map[string]string, files ...part) (*httptest.ResponseRecorder, apiEnvelope) {
	s.t.Helper()
	body, ct := multipartBody(s.t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, ct)
	return s.do(req, token)
}

func (s *testServer) register(path, email, gender string, extra map[string]string) session {
	s.t.Helper()
	fields := map[string]string{"fullName": "Name " + email, "email": email, "password": "password1", "gender": gender}
	for k, v := range extra {
		fields[k] = v
	}
	rec, env := s.multipart(path, "", fields, pngPart())
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out session
	require.NoError(s.t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) login(email, password string) session {
	s.t.Helper()
	rec, env := s.json(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var out session
	require.NoError(s.t, json.Unmarshal(env.Data, &out))
	return out
}

var motivatorFields = map[string]string{"bio": "b", "experience": "e", "specialities": "s", "reason": "r"}

func TestMessagingFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	client := s.register("/api/v1/auth/register-user", "a@x.io", "male", nil)
	assert.Equal(t, model.RoleClient, client.User.Role)
	assert.NotEmpty(t, client.AccessToken)

	pending := s.register("/api/v1/auth/register-motivator", "c@x.io", "male", motivatorFields)
	assert.Equal(t, model.UserStatusPending, pending.User.Status)

	rec, env := s.json(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "c@x.io", "password": "password1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "your account is awaiting admin approval", env.Message)

	admin := s.login("root@example.com", "rootpass1")
	rec, _ = s.json(http.MethodGet, "/api/v1/users/"+pending.User.ID+"/approve", admin.AccessToken, nil)
	assert.NotEqual(t, http.StatusOK, rec.Code, "approve is not reachable over GET")
	rec, _ = s.json(http.MethodPost, "/api/v1/users/"+pending.User.ID+"/approve", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	motivator := s.login("c@x.io", "password1")

	rec, env = s.multipart("/api/v1/messages", client.AccessToken, map[string]string{"content": "I need help"},
		part{name: "file", filename: "note.pdf", contentType: "application/pdf", body: []byte("%PDF")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var msg model.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, model.MessageStatusNew, msg.Status)
	assert.True(t, s.content.Has(msg.FileURL))

	rec, env = s.json(http.MethodGet, "/api/v1/messages/user-messages", motivator.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), msg.ID)

	rec, _ = s.json(http.MethodPatch, "/api/v1/messages/"+msg.ID+"/status", client.AccessToken,
		map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.json(http.MethodPost, "/api/v1/responses", motivator.AccessToken,
		map[string]string{"messageId": msg.ID, "content": "You're not alone"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = s.json(http.MethodPost, "/api/v1/responses", admin.AccessToken,
		map[string]string{"messageId": msg.ID, "content": "late"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	rec, env = s.json(http.MethodGet, "/api/v1/messages/"+msg.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/"+msg.ID, nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: client.AccessToken})
	rec, env = s.do(req, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, model.MessageStatusResponded, got.Status)
	assert.True(t, got.HasResponse)
	assert.Contains(t, string(env.Data), `"response":{`)
}

func TestRegisterValidationOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.multipart("/api/v1/auth/register-user", "",
		map[string]string{"fullName": "N", "email": "n@x.io", "password": "password1", "gender": "male"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "profile photo is required", env.Message)

	rec, env = s.multipart("/api/v1/auth/register-motivator", "",
		map[string]string{"fullName": "N", "email": "m@x.io", "password": "password1", "gender": "male"}, pngPart())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "bio")

	rec, env = s.multipart("/api/v1/auth/register-user", "",
		map[string]string{"fullName": "N", "email": "z@x.io", "password": "password1", "gender": "male"},
		part{name: "profilePhoto", filename: "x.exe", contentType: "application/octet-stream", body: []byte("MZ")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported file format", env.Message)

	s.register("/api/v1/auth/register-user", "dup@x.io", "female", nil)
	rec, _ = s.multipart("/api/v1/auth/register-user", "",
		map[string]string{"fullName": "N", "email": "DUP@x.io", "password": "password1", "gender": "female"}, pngPart())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.register("/api/v1/auth/register-user", "r@x.io", "female", nil)
	first := s.login("r@x.io", "password1")
	require.NotEmpty(t, first.RefreshToken)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: first.RefreshToken})
	rec, env := s.do(req, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rotated session
	require.NoError(t, json.Unmarshal(env.Data, &rotated))
	assert.NotEqual(t, first.RefreshToken, rotated.RefreshToken)

	rec, _ = s.json(http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{"refreshToken": first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "superseded token")

	rec, _ = s.json(http.MethodPost, "/api/v1/auth/logout", rotated.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "refreshToken" && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)

	rec, _ = s.json(http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{"refreshToken": rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "revoked by logout")
}

func TestUsersEndpoints(t *testing.T) {
	s := newTestServer(t)
	a := s.register("/api/v1/auth/register-user", "a@x.io", "male", nil)
	b := s.register("/api/v1/auth/register-user", "b@x.io", "female", nil)
	admin := s.login("root@example.com", "rootpass1")

	rec, _ := s.json(http.MethodGet, "/api/v1/users", a.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := s.json(http.MethodGet, "/api/v1/users?role=client", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []model.PublicUser
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Len(t, users, 2)
	assert.NotContains(t, string(env.Data), "password")

	rec, _ = s.json(http.MethodGet, "/api/v1/users/"+b.User.ID, a.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.json(http.MethodGet, "/api/v1/users/me", a.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.json(http.MethodPatch, "/api/v1/users/"+a.User.ID+"/status", admin.AccessToken,
		map[string]string{"status": "inactive"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.json(http.MethodGet, "/api/v1/users/me", a.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.json(http.MethodDelete, "/api/v1/users/"+b.User.ID, admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.json(http.MethodGet, "/api/v1/users/me", b.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "token of a deleted account")
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)

	rec, _ = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "peer_support_http_requests_total")
}
