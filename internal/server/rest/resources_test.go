package rest

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/ulpt/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResources_RoleGates(t *testing.T) {
	e := newEnv(t)
	simple := e.token(t, "u1", models.RoleSimple)
	referent := e.token(t, "u2", models.RoleReferent)

	tests := []struct {
		method, path, body, token string
		status                    int
	}{
		{http.MethodGet, "/api/books", "", simple, http.StatusOK},
		{http.MethodPost, "/api/books", `{"title":"T","photo":"p"}`, simple, http.StatusForbidden},
		{http.MethodPost, "/api/books", `{"title":"T","photo":"p"}`, referent, http.StatusForbidden},
		{http.MethodGet, "/api/projects", "", referent, http.StatusOK},
		{http.MethodDelete, "/api/projects/p1", "", referent, http.StatusForbidden},
		{http.MethodPost, "/api/childProfiles", `{"firstName":"Ana"}`, simple, http.StatusCreated},
		{http.MethodPost, "/api/bookLoans", `{"bookId":"b","childId":"c","returnDate":"2026-01-01T00:00:00Z"}`, referent, http.StatusCreated},
		{http.MethodGet, "/api/childProfiles", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := e.do(tt.method, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestResources_Create(t *testing.T) {
	e := newEnv(t)
	admin := e.token(t, "a1", models.RoleAdmin)

	w := e.do(http.MethodPost, "/api/books", `{"title":"Le Petit Prince"}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeValidation, decodeError(t, w).Code)
	assert.Empty(t, e.books.created)

	w = e.do(http.MethodPost, "/api/books", `{"title":`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/books", `{"id":"chosen","title":"Le Petit Prince","photo":"/uploads/a.png"}`, admin)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, e.books.created, 1)
	assert.Equal(t, "Le Petit Prince", e.books.created[0].Title)
	assert.Empty(t, e.books.created[0].ID, "client ids are ignored")

	w = e.do(http.MethodPost, "/api/bookLoans", `{"bookId":"b"}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResources_UpdateWritesOnlyPresentFields(t *testing.T) {
	e := newEnv(t)
	admin := e.token(t, "a1", models.RoleAdmin)
	e.projects.items["p1"] = &models.Project{Base: models.Base{ID: "p1"}, Name: "Old", Year: 2024}

	w := e.do(http.MethodPut, "/api/projects/p1", `{"name":"New","id":"other","facilitators":["u1"]}`, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []string{"Name", "Facilitators"}, e.projects.lastFields)

	w = e.do(http.MethodPut, "/api/projects/missing", `{"name":"New"}`, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResources_GetListDelete(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "u1", models.RoleSimple)
	e.children.items["c1"] = &models.ChildProfile{Base: models.Base{ID: "c1"}, FirstName: "Ana"}

	w := e.do(http.MethodGet, "/api/childProfiles/c1", "", tok)
	require.Equal(t, http.StatusOK, w.Code)
	var child models.ChildProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &child))
	assert.Equal(t, "Ana", child.FirstName)

	w = e.do(http.MethodGet, "/api/childProfiles", "", tok)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.ChildProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = e.do(http.MethodDelete, "/api/childProfiles/c1", "", tok)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/api/childProfiles/c1", "", tok)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/api/books", "", tok)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestBookLoans_FilterByChild(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "u1", models.RoleSimple)

	e.do(http.MethodGet, "/api/bookLoans?childId=c1&bogus=1", "", tok)
	assert.Equal(t, map[string]any{"child_id": "c1"}, e.loans.lastFilters)

	e.do(http.MethodGet, "/api/bookLoans", "", tok)
	assert.Empty(t, e.loans.lastFilters)

	// unrelated resources ignore the parameter
	e.do(http.MethodGet, "/api/books?childId=c1", "", tok)
	assert.Empty(t, e.books.lastFilters)
}

func multipartImage(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "u1", models.RoleSimple)
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

	body, ct := multipartImage(t, "image", png)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := e.serve(withAccess(req, tok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, strings.HasPrefix(res.URL, "/uploads/"))
	assert.True(t, strings.HasSuffix(res.URL, ".png"))

	// the stored file is served back
	w = e.do(http.MethodGet, res.URL, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, png, w.Body.Bytes())

	body, ct = multipartImage(t, "image", []byte("plain text"))
	req = httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w = e.serve(withAccess(req, tok))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartImage(t, "file", png)
	req = httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w = e.serve(withAccess(req, tok))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/upload", nil)
	assert.Equal(t, http.StatusUnauthorized, e.serve(req).Code)
}

func withAccess(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: token})
	return req
}
