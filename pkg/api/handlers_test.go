package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenantlabs/covenant/pkg/contracts"
	"github.com/covenantlabs/covenant/pkg/eventlog"
	"github.com/covenantlabs/covenant/pkg/identity"
	"github.com/covenantlabs/covenant/pkg/registry"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	reg := registry.New(eventlog.New())
	server := NewServer(reg, identity.NewLogicalClock(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return AuthMiddleware(NewJWTValidator(testSecret))(server.Routes())
}

func doRequest(t *testing.T, handler http.Handler, method, path, subject string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, subject))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createContract(t *testing.T, handler http.Handler, subject string) contracts.ContractID {
	t.Helper()
	rec := doRequest(t, handler, http.MethodPost, "/v1/contracts", subject, map[string]interface{}{
		"title":                "NDA",
		"description":          "Mutual non-disclosure",
		"required_signatures":  2,
		"initial_content_hash": strings.Repeat("ab", contracts.ContentHashSize),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID contracts.ContractID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestHealthIsPublic(t *testing.T) {
	handler := newTestServer(t)
	rec := doRequest(t, handler, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodPost, "/v1/contracts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/contracts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	out := httptest.NewRecorder()
	handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnauthorized, out.Code)
}

func TestCreateAndGetContract(t *testing.T) {
	handler := newTestServer(t)
	id := createContract(t, handler, "alice")
	assert.Equal(t, contracts.ContractID(0), id)

	rec := doRequest(t, handler, http.MethodGet, fmt.Sprintf("/v1/contracts/%d", id), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Title          string `json:"title"`
		Status         string `json:"status"`
		Creator        string `json:"creator"`
		LatestVersion  uint64 `json:"latest_version"`
		SignatureCount int    `json:"signature_count"`
		QuorumReached  bool   `json:"quorum_reached"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NDA", resp.Title)
	assert.Equal(t, "ACTIVE", resp.Status)
	assert.Equal(t, "alice", resp.Creator)
	assert.Equal(t, uint64(0), resp.LatestVersion)
	assert.Equal(t, 0, resp.SignatureCount)
	assert.False(t, resp.QuorumReached)
}

func TestCreateContractBadInput(t *testing.T) {
	handler := newTestServer(t)

	// Malformed hash.
	rec := doRequest(t, handler, http.MethodPost, "/v1/contracts", "alice", map[string]interface{}{
		"title":                "NDA",
		"description":          "desc",
		"required_signatures":  2,
		"initial_content_hash": "zz",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Engine-level validation surfaces as 400 too.
	rec = doRequest(t, handler, http.MethodPost, "/v1/contracts", "alice", map[string]interface{}{
		"title":                "",
		"description":          "desc",
		"required_signatures":  2,
		"initial_content_hash": strings.Repeat("ab", contracts.ContentHashSize),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, http.StatusBadRequest, problem.Status)
}

func TestGetContractNotFound(t *testing.T) {
	handler := newTestServer(t)
	rec := doRequest(t, handler, http.MethodGet, "/v1/contracts/42", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignatureFlow(t *testing.T) {
	handler := newTestServer(t)
	id := createContract(t, handler, "alice")
	sigHash := strings.Repeat("cd", contracts.SignatureHashSize)

	rec := doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/signatures", id), "bob",
		map[string]string{"signature_hash": sigHash})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The same signer again conflicts.
	rec = doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/signatures", id), "bob",
		map[string]string{"signature_hash": sigHash})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/v1/contracts/%d/signatures", id), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sigs []contracts.Signature
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sigs))
	require.Len(t, sigs, 1)
	assert.Equal(t, contracts.Principal("bob"), sigs[0].Signer)
}

func TestVersionFlow(t *testing.T) {
	handler := newTestServer(t)
	id := createContract(t, handler, "alice")

	rec := doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/versions", id), "alice",
		map[string]string{
			"content_hash": "0x" + strings.Repeat("11", contracts.ContentHashSize),
			"metadata":     "redlined draft",
		})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Number uint64 `json:"number"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.Number)

	// A caller without write access gets 403.
	rec = doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/versions", id), "mallory",
		map[string]string{
			"content_hash": strings.Repeat("22", contracts.ContentHashSize),
			"metadata":     "sneaky edit",
		})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/v1/contracts/%d/versions", id), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var vers []contracts.Version
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vers))
	assert.Len(t, vers, 2)
}

func TestArchiveFlow(t *testing.T) {
	handler := newTestServer(t)
	id := createContract(t, handler, "alice")

	rec := doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/archive", id), "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/archive", id), "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Archived is terminal.
	rec = doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/archive", id), "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAccessFlow(t *testing.T) {
	handler := newTestServer(t)
	id := createContract(t, handler, "alice")

	rec := doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/access", id), "alice",
		map[string]string{"principal": "bob", "level": "WRITE"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Unknown level names are rejected before reaching the engine.
	rec = doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/access", id), "alice",
		map[string]string{"principal": "carol", "level": "OWNER"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/v1/contracts/%d/access/bob", id), "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The creator's entry is protected.
	rec = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/v1/contracts/%d/access/alice", id), "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListEvents(t *testing.T) {
	handler := newTestServer(t)
	id := createContract(t, handler, "alice")
	sigHash := strings.Repeat("cd", contracts.SignatureHashSize)
	rec := doRequest(t, handler, http.MethodPost, fmt.Sprintf("/v1/contracts/%d/signatures", id), "bob",
		map[string]string{"signature_hash": sigHash})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/v1/contracts/%d/events", id), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []contracts.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, contracts.EventContractCreated, events[0].Type)
	assert.Equal(t, contracts.EventSignatureAdded, events[1].Type)

	rec = doRequest(t, handler, http.MethodGet,
		fmt.Sprintf("/v1/contracts/%d/events?type=signature_added", id), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, contracts.EventSignatureAdded, events[0].Type)
}

func TestInvalidContractIDPath(t *testing.T) {
	handler := newTestServer(t)
	rec := doRequest(t, handler, http.MethodGet, "/v1/contracts/not-a-number", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
