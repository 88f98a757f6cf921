package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/covenantlabs/covenant/pkg/contracts"
	"github.com/covenantlabs/covenant/pkg/eventlog"
	"github.com/covenantlabs/covenant/pkg/identity"
	"github.com/covenantlabs/covenant/pkg/registry"
)

// Server exposes the contract engine over HTTP.
type Server struct {
	registry *registry.Registry
	clock    *identity.LogicalClock
	logger   *slog.Logger
}

// NewServer wires the engine to the HTTP surface.
func NewServer(reg *registry.Registry, clock *identity.LogicalClock, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: reg, clock: clock, logger: logger}
}

// Routes returns the route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/contracts", s.handleCreateContract)
	mux.HandleFunc("GET /v1/contracts/{id}", s.handleGetContract)
	mux.HandleFunc("POST /v1/contracts/{id}/signatures", s.handleAddSignature)
	mux.HandleFunc("GET /v1/contracts/{id}/signatures", s.handleListSignatures)
	mux.HandleFunc("POST /v1/contracts/{id}/versions", s.handleRecordVersion)
	mux.HandleFunc("GET /v1/contracts/{id}/versions", s.handleListVersions)
	mux.HandleFunc("POST /v1/contracts/{id}/archive", s.handleArchive)
	mux.HandleFunc("POST /v1/contracts/{id}/access", s.handleGrantAccess)
	mux.HandleFunc("DELETE /v1/contracts/{id}/access/{principal}", s.handleRevokeAccess)
	mux.HandleFunc("GET /v1/contracts/{id}/events", s.handleListEvents)
	return mux
}

// operation builds the per-request identity context: the authenticated
// caller plus a fresh tick of the server's logical clock.
func (s *Server) operation(r *http.Request) (identity.Operation, error) {
	caller, err := identity.PrincipalFromContext(r.Context())
	if err != nil {
		return identity.Operation{}, err
	}
	return identity.Operation{Caller: caller, Now: s.clock.Tick()}, nil
}

func contractIDFromPath(r *http.Request) (contracts.ContractID, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid contract id %q", raw)
	}
	return contracts.ContractID(id), nil
}

func decodeHash(field, value string, size int) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%s must be hex-encoded: %w", field, err)
	}
	if len(raw) != size {
		return nil, fmt.Errorf("%s must be exactly %d bytes, got %d", field, size, len(raw))
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createContractRequest struct {
	Title              string `json:"title"`
	Description        string `json:"description"`
	RequiredSignatures uint8  `json:"required_signatures"`
	InitialContentHash string `json:"initial_content_hash"`
}

type createContractResponse struct {
	ID contracts.ContractID `json:"id"`
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	op, err := s.operation(r)
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}

	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}
	hash, err := decodeHash("initial_content_hash", req.InitialContentHash, contracts.ContentHashSize)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	id, err := s.registry.CreateContract(r.Context(), op, req.Title, req.Description, req.RequiredSignatures, hash)
	if err != nil {
		WriteEngineError(w, err)
		return
	}

	s.logger.Info("contract created", "contract_id", id, "caller", op.Caller)
	writeJSON(w, http.StatusCreated, createContractResponse{ID: id})
}

type contractResponse struct {
	contracts.Contract
	LatestVersion  uint64 `json:"latest_version"`
	SignatureCount int    `json:"signature_count"`
	QuorumReached  bool   `json:"quorum_reached"`
}

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	id, err := contractIDFromPath(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	c, err := s.registry.GetContractDetails(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	latest, err := s.registry.LatestVersion(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	count, err := s.registry.SignatureCount(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	quorum, err := s.registry.QuorumReached(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contractResponse{
		Contract:       c,
		LatestVersion:  latest,
		SignatureCount: count,
		QuorumReached:  quorum,
	})
}

type addSignatureRequest struct {
	SignatureHash string `json:"signature_hash"`
}

func (s *Server) handleAddSignature(w http.ResponseWriter, r *http.Request) {
	op, err := s.operation(r)
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}
	id, err := contractIDFromPath(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	var req addSignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}
	hash, err := decodeHash("signature_hash", req.SignatureHash, contracts.SignatureHashSize)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if err := s.registry.AddSignature(r.Context(), op, id, hash); err != nil {
		WriteEngineError(w, err)
		return
	}

	s.logger.Info("signature added", "contract_id", id, "signer", op.Caller)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleListSignatures(w http.ResponseWriter, r *http.Request) {
	id, err := contractIDFromPath(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	sigs, err := s.registry.ListSignatures(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sigs)
}

type recordVersionRequest struct {
	ContentHash string `json:"content_hash"`
	Metadata    string `json:"metadata"`
}

type recordVersionResponse struct {
	Number uint64 `json:"number"`
}

func (s *Server) handleRecordVersion(w http.ResponseWriter, r *http.Request) {
	op, err := s.operation(r)
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}
	id, err := contractIDFromPath(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	var req recordVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}
	hash, err := decodeHash("content_hash", req.ContentHash, contracts.ContentHashSize)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	number, err := s.registry.RecordVersion(r.Context(), op, id, hash, req.Metadata)
	if err != nil {
		WriteEngineError(w, err)
		return
	}

	s.logger.Info("version recorded", "contract_id", id, "version", number, "caller", op.Caller)
	writeJSON(w, http.StatusCreated, recordVersionResponse{Number: number})
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	id, err := contractIDFromPath(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	vers, err := s.registry.ListVersions(id)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vers)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	op, err := s.operation(r)
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}
	id, err := contractIDFromPath(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if err := s.registry.ArchiveContract(r.Context(), op, id); err != nil {
		WriteEngineError(w, err)
		return
	}

	s.logger.Info("contract archived", "contract_id", id, "caller", op.Caller)
	w.WriteHeader(http.StatusNoContent)
}

type grantAccessRequest struct {
	Principal string `json:"principal"`
	Level     string `json:"level"`
}

func parseLevel(raw string) (contracts.AccessLevel, error) {
	switch strings.ToUpper(raw) {
	case "READ":
		return contracts.AccessRead, nil
	case "WRITE":
		return contracts.AccessWrite, nil
	case "ADMIN":
		return contracts.AccessAdmin, nil
	default:
		return 0, fmt.Errorf("unknown access level %q", raw)
	}
}

func (s *Server) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	op, err := s.operation(r)
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}
	id, err := contractIDFromPath(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	var req grantAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}
	level, err := parseLevel(req.Level)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if err := s.registry.GrantAccess(r.Context(), op, id, contracts.Principal(req.Principal), level); err != nil {
		WriteEngineError(w, err)
		return
	}

	s.logger.Info("access granted", "contract_id", id, "grantee", req.Principal, "level", level.String(), "caller", op.Caller)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	op, err := s.operation(r)
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}
	id, err := contractIDFromPath(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	grantee := contracts.Principal(r.PathValue("principal"))

	if err := s.registry.RevokeAccess(r.Context(), op, id, grantee); err != nil {
		WriteEngineError(w, err)
		return
	}

	s.logger.Info("access revoked", "contract_id", id, "grantee", grantee, "caller", op.Caller)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := contractIDFromPath(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	if _, err := s.registry.GetContractDetails(id); err != nil {
		WriteEngineError(w, err)
		return
	}

	filter := eventlog.Filter{ContractID: &id}
	if raw := r.URL.Query().Get("type"); raw != "" {
		filter.Type = contracts.EventType(raw)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	writeJSON(w, http.StatusOK, s.registry.Events().Query(filter))
}
