package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portodas-api/internal/blob"
	"portodas-api/internal/identity"
	"portodas-api/internal/storage"
)

func (e *testEnv) upload(path, destination, filename string, data []byte, fields map[string]string, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if destination != "" {
		require.NoError(e.t, writer.WriteField("destination", destination))
	}
	for key, value := range fields {
		require.NoError(e.t, writer.WriteField(key, value))
	}
	if data != nil {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(e.t, err)
		_, err = part.Write(data)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAdminUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/admin/users", map[string]any{"email": "nova@example.org"}, env.adminToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email e senha são obrigatórios."}`, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/admin/users", map[string]any{"email": "nova@example.org", "password": "secret123"}, env.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Usuário administrador criado com sucesso: nova@example.org", created["message"])

	user, err := env.identity.GetUser(context.Background(), created["uid"])
	require.NoError(t, err)
	assert.Equal(t, true, user.CustomClaims[identity.AdminClaim])

	rec = env.do(http.MethodPost, "/api/admin/users", map[string]any{"email": "nova@example.org", "password": "secret123"}, env.adminToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"O endereço de e-mail já está em uso."}`, rec.Body.String())
}

func TestPromoteUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, err := env.identity.GetUserByEmail(ctx, "user@example.org")
	require.NoError(t, err)
	require.NoError(t, env.identity.SetCustomUserClaims(ctx, user.UID, map[string]any{"editor": true}))

	rec := env.do(http.MethodPut, "/api/admin/users/promote", map[string]any{"email": "user@example.org"}, env.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Sucesso! user@example.org agora é um administrador."}`, rec.Body.String())

	user, err = env.identity.GetUser(ctx, user.UID)
	require.NoError(t, err)
	assert.Equal(t, true, user.CustomClaims[identity.AdminClaim])
	assert.Equal(t, true, user.CustomClaims["editor"])

	rec = env.do(http.MethodPut, "/api/admin/users/promote", map[string]any{"email": "ghost@example.org"}, env.adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Usuário com e-mail ghost@example.org não encontrado."}`, rec.Body.String())
}

func TestListDeleteAndRevokeUsers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/admin/users", nil, env.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decodeBody[[]userResponse](t, rec)
	require.Len(t, users, 2)

	var target userResponse
	for _, u := range users {
		if u.Email == "user@example.org" {
			target = u
		}
	}
	require.NotEmpty(t, target.UID)

	rec = env.do(http.MethodPost, "/api/admin/users/"+target.UID+"/revoke", nil, env.adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodDelete, "/api/admin/users/"+target.UID, nil, env.adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodGet, "/api/admin/users/"+target.UID, nil, env.adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssueToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/token", map[string]any{"email": "admin@example.org", "password": "secret123"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	signed := decodeBody[identity.SignedToken](t, rec)
	require.NotEmpty(t, signed.IDToken)

	rec = env.do(http.MethodGet, "/api/admin/posts", nil, signed.IDToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/token", map[string]any{"email": "admin@example.org", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid email or password"}`, rec.Body.String())
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload("/api/uploads/file", "reports", "prova.png", []byte("png-bytes"), nil, env.userToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result struct {
		URL         string `json:"url"`
		StoragePath string `json:"storagePath"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, strings.HasPrefix(result.StoragePath, "reports/"), result.StoragePath)
	assert.True(t, strings.HasSuffix(result.StoragePath, "_prova.png"), result.StoragePath)
	assert.True(t, env.blobs.IsPublic(result.StoragePath))

	rec = env.upload("/api/uploads/file", "", "nota.txt", []byte("text"), nil, env.userToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, strings.HasPrefix(result.StoragePath, "general/"), result.StoragePath)

	rec = env.upload("/api/uploads/file", "banners", "topo.png", []byte("png-bytes"), nil, env.userToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Forbidden: Only admins can upload banners."}`, rec.Body.String())

	rec = env.upload("/api/uploads/file", "reports", "prova.png", []byte("png-bytes"), nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.upload("/api/uploads/file", "reports", "", nil, nil, env.userToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded."}`, rec.Body.String())

	rec = env.upload("/api/uploads/file", "reports", "big.bin", bytes.Repeat([]byte("x"), 2048), nil, env.userToken)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadFileGuardsBannerFolder(t *testing.T) {
	env := newTestEnv(t)

	for _, destination := range []string{"banners", "/banners/", "banners/x", "banners\\hero"} {
		rec := env.upload("/api/uploads/file", destination, "topo.png", []byte("png-bytes"), nil, env.userToken)
		assert.Equal(t, http.StatusForbidden, rec.Code, destination)
	}
	for _, destination := range []string{"banners/../banners", "./banners", "reports/../banners", "reports//x", "."} {
		rec := env.upload("/api/uploads/file", destination, "topo.png", []byte("png-bytes"), nil, env.userToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code, destination)
		assert.JSONEq(t, `{"error":"Invalid destination."}`, rec.Body.String())
	}
	assert.Empty(t, env.blobs.Names())

	rec := env.upload("/api/uploads/file", "banners/x", "topo.png", []byte("png-bytes"), nil, env.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(decodeBody[map[string]string](t, rec)["storagePath"], "banners/x/"))
}

func TestSignedUploadURL(t *testing.T) {
	env := newTestEnv(t)
	request := func(kind string) map[string]any {
		return map[string]any{"type": kind, "filename": "anexo.pdf", "contentType": "application/pdf"}
	}

	rec := env.do(http.MethodPost, "/api/uploads/signed-url", request("report"), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	signed := decodeBody[map[string]string](t, rec)
	assert.True(t, strings.HasPrefix(signed["storagePath"], "reports/"), signed["storagePath"])
	assert.NotEmpty(t, signed["uploadUrl"])

	rec = env.do(http.MethodPost, "/api/uploads/signed-url", request("banner"), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(http.MethodPost, "/api/uploads/signed-url", request("banner"), env.userToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(http.MethodPost, "/api/uploads/signed-url", request("banner"), env.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decodeBody[map[string]string](t, rec)["storagePath"], "banners/"))

	rec = env.do(http.MethodPost, "/api/uploads/signed-url", request("avatar"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBannerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.blobs.Put(ctx, "banners/1_topo.png", "image/png", []byte("png-bytes")))

	rec := env.do(http.MethodPost, "/api/admin/banners/confirm", map[string]any{"storagePath": "banners/1_topo.png", "alt": "Topo"}, env.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	banner := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "image/png", banner["contentType"])
	assert.Equal(t, true, banner["isActive"])
	assert.True(t, env.blobs.IsPublic("banners/1_topo.png"))

	rec = env.do(http.MethodGet, "/api/public/banners", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)

	id := banner["id"].(string)
	rec = env.do(http.MethodPut, "/api/admin/banners/"+id, map[string]any{"isActive": false}, env.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/public/banners", nil, "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, env.blobs.Delete(ctx, "banners/1_topo.png"))
	rec = env.do(http.MethodDelete, "/api/admin/banners/"+id, nil, env.adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodGet, "/api/admin/banners/"+id, nil, env.adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBannerConfirmRequiresBlob(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/admin/banners/confirm", map[string]any{"storagePath": "banners/missing.png"}, env.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/admin/banners/confirm", map[string]any{"storagePath": "reports/x.png"}, env.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBannerMultipartCreate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload("/api/admin/banners", "", "topo.png", []byte("png-bytes"), map[string]string{
		"alt":      "Topo",
		"isActive": "false",
	}, env.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	banner := decodeBody[map[string]any](t, rec)
	assert.Equal(t, false, banner["isActive"])
	assert.Equal(t, "Topo", banner["alt"])
	assert.True(t, strings.HasPrefix(banner["storagePath"].(string), "banners/"))
}

func TestBannerMultipartCreateRejectsBadFieldsBeforeStoring(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload("/api/admin/banners", "", "topo.png", []byte("png-bytes"), map[string]string{"isActive": "maybe"}, env.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "isActive")
	assert.Empty(t, env.blobs.Names())

	rec = env.do(http.MethodGet, "/api/admin/banners", nil, env.adminToken)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

type unpublishableBlobs struct {
	*blob.Memory
}

func (unpublishableBlobs) MakePublic(context.Context, string) error {
	return errors.New("acl denied")
}

func TestBannerMultipartCreateDiscardsBlobWhenConfirmFails(t *testing.T) {
	env := newTestEnv(t)
	env.handler.Repos = storage.New(env.store, storage.WithBlobStore(unpublishableBlobs{env.blobs}))

	rec := env.upload("/api/admin/banners", "", "topo.png", []byte("png-bytes"), map[string]string{"alt": "Topo"}, env.adminToken)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, env.blobs.Names())
}

func TestSections(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/admin/sections", map[string]any{
		"type":     "hero",
		"title":    "Bem-vinda",
		"imageUrl": "https://example.org/hero.png",
		"isActive": true,
	}, env.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	hero := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "hero", hero["type"])
	assert.Equal(t, "Bem-vinda", hero["title"])
	heroID := hero["id"].(string)

	rec = env.do(http.MethodPost, "/api/admin/sections", map[string]any{"type": "text", "title": "Sobre", "body": "Texto da seção sobre nós"}, env.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	hiddenID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = env.do(http.MethodGet, "/api/public/sections", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	active := decodeBody[[]map[string]any](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, heroID, active[0]["id"])

	rec = env.do(http.MethodGet, "/api/public/sections/"+hiddenID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"msg":"Seção não encontrada"}`, rec.Body.String())

	rec = env.do(http.MethodPut, "/api/admin/sections/"+heroID, map[string]any{"type": "text"}, env.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/api/admin/sections/"+heroID, map[string]any{"subtitle": "Juntas"}, env.adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Juntas", updated["subtitle"])
	assert.Equal(t, "Bem-vinda", updated["title"])

	rec = env.do(http.MethodPut, "/api/admin/sections/missing", map[string]any{"subtitle": "x"}, env.adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Section not found"}`, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/admin/sections", map[string]any{"type": "carousel"}, env.adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
