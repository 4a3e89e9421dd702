package recordhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ruteri/geodata-registry/api"
	"github.com/ruteri/geodata-registry/geodata"
	"github.com/ruteri/geodata-registry/interfaces"
)

// HashSource derives record hashes from workspace files.
type HashSource interface {
	Hashes(encryptedFile, metadataFile, originalFile string) (cipherHash, metadataHash string, err error)
}

// Handler exposes a RecordStore over HTTP.
type Handler struct {
	store interfaces.RecordStore
	files HashSource
	log   *slog.Logger
	now   func() time.Time
}

// NewHandler creates a handler. files may be nil, in which case requests
// must carry the hashes.
func NewHandler(store interfaces.RecordStore, files HashSource, log *slog.Logger) *Handler {
	return &Handler{
		store: store,
		files: files,
		log:   log,
		now:   time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/blockchain", func(r chi.Router) {
		r.Post("/store", h.HandleStore)
		r.Get("/retrieve/{data_id}", h.HandleRetrieve)
		r.Post("/update", h.HandleUpdate)
		r.Post("/access/grant", h.HandleGrantAccess)
		r.Post("/access/revoke", h.HandleRevokeAccess)
		r.Get("/access/check", h.HandleCheckAccess)
		r.Get("/data", h.HandleListIDs)
	})
}

// StatusFor maps a record store error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("record store failure", "op", op, "err", err)
		http.Error(w, fmt.Sprintf("%s failed: %v", op, err), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func callerFrom(r *http.Request) (interfaces.Identity, error) {
	raw := r.Header.Get(api.CallerHeader)
	if raw == "" {
		return interfaces.Identity{}, fmt.Errorf("missing %s header", api.CallerHeader)
	}
	caller, err := interfaces.NewIdentityFromHex(raw)
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("invalid %s header: %w", api.CallerHeader, err)
	}
	return caller, nil
}

// dataIDParam returns the decoded {data_id} path segment. chi routes on
// RawPath when the request carried escapes such as %2F, so the parameter
// is still escaped in that case.
func dataIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "data_id")
	if r.URL.RawPath == "" {
		return raw, nil
	}
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid data_id: %w", err)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// resolveHashes takes the hashes from the request, or derives them from the
// referenced files. A missing file is a client error.
func (h *Handler) resolveHashes(cipherHash, metadataHash, encryptedFile, metadataFile, originalFile string) (string, string, int, error) {
	if cipherHash != "" && metadataHash != "" {
		return cipherHash, metadataHash, http.StatusOK, nil
	}
	if encryptedFile == "" {
		return "", "", http.StatusBadRequest, errors.New("cipher_hash and metadata_hash, or encrypted_file, are required")
	}
	if h.files == nil {
		return "", "", http.StatusBadRequest, errors.New("file based hashing is not available, provide cipher_hash and metadata_hash")
	}

	cipherHash, metadataHash, err := h.files.Hashes(encryptedFile, metadataFile, originalFile)
	switch {
	case errors.Is(err, geodata.ErrFileNotFound):
		return "", "", http.StatusBadRequest, err
	case err != nil:
		h.log.Error("could not hash files", "file", encryptedFile, "err", err)
		return "", "", http.StatusInternalServerError, err
	}
	return cipherHash, metadataHash, http.StatusOK, nil
}

// HandleStore creates a record owned by the caller.
//
// URL format: POST /api/blockchain/store
// Body: api.StoreRequest. data_id is generated when absent.
func (h *Handler) HandleStore(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req api.StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}

	cipherHash, metadataHash, status, err := h.resolveHashes(req.CipherHash, req.MetadataHash, req.EncryptedFile, req.MetadataFile, req.OriginalFile)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	dataID := req.DataID
	if dataID == "" {
		name := req.EncryptedFile
		if name == "" {
			name = uuid.NewString()
		}
		dataID = geodata.GenerateDataID(name, h.now().Unix())
	}

	if err := h.store.Store(r.Context(), caller, dataID, cipherHash, metadataHash); err != nil {
		h.writeStoreError(w, "store", err)
		return
	}

	h.log.Info("Stored record", "data_id", dataID, "owner", caller.String())
	writeJSON(w, http.StatusOK, api.StoreResponse{
		Message:      "Data reference stored",
		DataID:       dataID,
		CipherHash:   cipherHash,
		MetadataHash: metadataHash,
	})
}

// HandleRetrieve returns a record to its owner or a granted identity.
//
// URL format: GET /api/blockchain/retrieve/{data_id}
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dataID, err := dataIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.store.Retrieve(r.Context(), caller, dataID)
	if err != nil {
		h.writeStoreError(w, "retrieve", err)
		return
	}

	writeJSON(w, http.StatusOK, api.RetrieveResponse{
		DataID:       rec.ID,
		CipherHash:   rec.CipherHash,
		MetadataHash: rec.MetadataHash,
		Timestamp:    rec.Timestamp,
		Owner:        rec.Owner,
	})
}

// HandleUpdate replaces the hashes of a record owned by the caller.
//
// URL format: POST /api/blockchain/update
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req api.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}
	if req.DataID == "" {
		http.Error(w, "data_id is required", http.StatusBadRequest)
		return
	}

	cipherHash, metadataHash, status, err := h.resolveHashes(req.CipherHash, req.MetadataHash, req.EncryptedFile, req.MetadataFile, req.OriginalFile)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	if err := h.store.UpdateData(r.Context(), caller, req.DataID, cipherHash, metadataHash); err != nil {
		h.writeStoreError(w, "update", err)
		return
	}

	writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Data updated", DataID: req.DataID})
}

func (h *Handler) HandleGrantAccess(w http.ResponseWriter, r *http.Request) {
	h.handleAccessChange(w, r, "grant", h.store.GrantAccess, "Access granted")
}

func (h *Handler) HandleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	h.handleAccessChange(w, r, "revoke", h.store.RevokeAccess, "Access revoked")
}

type accessChangeFunc func(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error

// handleAccessChange serves POST /api/blockchain/access/{grant,revoke}
// with an api.AccessRequest body.
func (h *Handler) handleAccessChange(w http.ResponseWriter, r *http.Request, op string, change accessChangeFunc, message string) {
	caller, err := callerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req api.AccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}
	if req.DataID == "" {
		http.Error(w, "data_id is required", http.StatusBadRequest)
		return
	}

	grantee, err := interfaces.NewIdentityFromHex(req.Address)
	if err != nil {
		http.Error(w, fmt.Errorf("invalid address: %w", err).Error(), http.StatusBadRequest)
		return
	}

	if err := change(r.Context(), caller, req.DataID, grantee); err != nil {
		h.writeStoreError(w, op, err)
		return
	}

	h.log.Info("Changed record access", "op", op, "data_id", req.DataID, "grantee", grantee.String())
	writeJSON(w, http.StatusOK, api.MessageResponse{Message: message, DataID: req.DataID, Address: grantee.String()})
}

// HandleCheckAccess reports whether an address may read a record. It does
// not require a caller.
//
// URL format: GET /api/blockchain/access/check?data_id=...&address=...
func (h *Handler) HandleCheckAccess(w http.ResponseWriter, r *http.Request) {
	dataID := r.URL.Query().Get("data_id")
	address := r.URL.Query().Get("address")
	if dataID == "" || address == "" {
		http.Error(w, "missing data_id or address parameters", http.StatusBadRequest)
		return
	}

	who, err := interfaces.NewIdentityFromHex(address)
	if err != nil {
		http.Error(w, fmt.Errorf("invalid address: %w", err).Error(), http.StatusBadRequest)
		return
	}

	ok, err := h.store.CheckAccess(r.Context(), dataID, who)
	if err != nil {
		h.writeStoreError(w, "check access", err)
		return
	}

	writeJSON(w, http.StatusOK, api.CheckAccessResponse{DataID: dataID, Address: who.String(), HasAccess: ok})
}

// HandleListIDs lists every record id, or with owned=true only the caller's.
//
// URL format: GET /api/blockchain/data?owned=bool
func (h *Handler) HandleListIDs(w http.ResponseWriter, r *http.Request) {
	owned := false
	if raw := r.URL.Query().Get("owned"); raw != "" {
		var err error
		if owned, err = strconv.ParseBool(raw); err != nil {
			http.Error(w, fmt.Errorf("invalid owned parameter: %w", err).Error(), http.StatusBadRequest)
			return
		}
	}

	var (
		ids []string
		err error
	)
	if owned {
		caller, cerr := callerFrom(r)
		if cerr != nil {
			http.Error(w, cerr.Error(), http.StatusBadRequest)
			return
		}
		ids, err = h.store.ListMyIDs(r.Context(), caller)
	} else {
		ids, err = h.store.ListAllIDs(r.Context())
	}
	if err != nil {
		h.writeStoreError(w, "list ids", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, api.DataIDsResponse{DataIDs: ids, Count: len(ids)})
}
