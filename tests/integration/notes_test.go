//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotes_CRUD(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("notes-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	// Create
	body := map[string]string{"title": "Meeting notes", "content": "Discuss roadmap"}
	resp := DoRequest(t, env, "POST", "/api/v1/notes", body, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	noteID := data["id"].(string)
	assert.Equal(t, "Meeting notes", data["title"])
	assert.Equal(t, false, data["is_public"])

	// Get
	resp = DoRequest(t, env, "GET", "/api/v1/notes/"+noteID, nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = ParseResponse(t, resp)
	data = result["data"].(map[string]any)
	assert.Equal(t, "Discuss roadmap", data["content"])

	// Update
	updateBody := map[string]any{"title": "Updated notes"}
	resp = DoRequest(t, env, "PUT", "/api/v1/notes/"+noteID, updateBody, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = ParseResponse(t, resp)
	data = result["data"].(map[string]any)
	assert.Equal(t, "Updated notes", data["title"])

	// List
	resp = DoRequest(t, env, "GET", "/api/v1/notes", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listResult := ParseResponse(t, resp)
	assert.Equal(t, float64(1), listResult["total_count"])

	// Delete
	resp = DoRequest(t, env, "DELETE", "/api/v1/notes/"+noteID, nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "GET", "/api/v1/notes/"+noteID, nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestNotes_OwnershipIsolation(t *testing.T) {
	env := SetupTestEnv(t)

	email1 := fmt.Sprintf("owner1-%d@test.com", uniqueID())
	RegisterUser(t, env, email1, "password123")
	token1 := LoginUser(t, env, email1, "password123")

	email2 := fmt.Sprintf("owner2-%d@test.com", uniqueID())
	RegisterUser(t, env, email2, "password123")
	token2 := LoginUser(t, env, email2, "password123")

	body := map[string]string{"title": "Private", "content": "secret"}
	resp := DoRequest(t, env, "POST", "/api/v1/notes", body, token1)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := ParseResponse(t, resp)
	noteID := result["data"].(map[string]any)["id"].(string)

	resp = DoRequest(t, env, "GET", "/api/v1/notes/"+noteID, nil, token2)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "DELETE", "/api/v1/notes/"+noteID, nil, token2)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestNotes_PublicSharing(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("share-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	body := map[string]string{"title": "Shared", "content": "visible to all"}
	resp := DoRequest(t, env, "POST", "/api/v1/notes", body, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := ParseResponse(t, resp)
	noteID := result["data"].(map[string]any)["id"].(string)

	// Publishing assigns a share slug
	isPublic := true
	resp = DoRequest(t, env, "PUT", "/api/v1/notes/"+noteID, map[string]any{"is_public": isPublic}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = ParseResponse(t, resp)
	slug, _ := result["data"].(map[string]any)["slug"].(string)
	require.NotEmpty(t, slug)

	// The shared note is readable without a token
	resp = DoRequest(t, env, "GET", "/api/v1/public/notes/"+slug, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = ParseResponse(t, resp)
	assert.Equal(t, "visible to all", result["data"].(map[string]any)["content"])

	// Unpublishing hides it again
	isPublic = false
	resp = DoRequest(t, env, "PUT", "/api/v1/notes/"+noteID, map[string]any{"is_public": isPublic}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "GET", "/api/v1/public/notes/"+slug, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
