package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/foldnet/foldnet/audit"
	"github.com/foldnet/foldnet/fhe"
	"github.com/foldnet/foldnet/ledger"
	"github.com/foldnet/foldnet/metrics"
	"github.com/foldnet/foldnet/protocol"
)

// Encrypter mints ciphertext handles for plaintext values. The development
// engine implements this so clients without local FHE tooling can submit.
type Encrypter interface {
	Encrypt(value uint64) (fhe.Ciphertext, error)
}

// LedgerHandler exposes the batch ledger over HTTP. Mutating routes expect a
// protocol.Signed envelope; the signer's public key is the caller address the
// ledger authorizes against.
type LedgerHandler struct {
	Ledger  *ledger.Ledger
	Log     *slog.Logger
	Metrics *metrics.MetricsServer

	// Encrypter enables the development-only POST /fhe/encrypt route.
	Encrypter Encrypter

	// Trail enables the GET /events route over the in-memory audit trail.
	Trail *audit.MemoryTrail
}

func NewLedgerHandler(l *ledger.Ledger, log *slog.Logger, m *metrics.MetricsServer) *LedgerHandler {
	return &LedgerHandler{Ledger: l, Log: log, Metrics: m}
}

func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/admin/transfer-ownership", h.handleTransferOwnership)
	r.Post("/admin/provider/add", h.handleAddProvider)
	r.Post("/admin/provider/remove", h.handleRemoveProvider)
	r.Post("/admin/pause", h.handleSetPaused)
	r.Post("/admin/cooldown", h.handleSetCooldown)

	r.Post("/batch/open", h.handleOpenBatch)
	r.Post("/batch/close", h.handleCloseBatch)
	r.Post("/batch/submit", h.handleSubmitFoldingData)
	r.Post("/batch/request-decryption", h.handleRequestDecryption)

	r.Post("/oracle/callback", h.handleOracleCallback)

	r.Get("/batch/current", h.handleCurrentBatch)
	r.Get("/batch/{id}", h.handleBatch)
	r.Get("/ledger/info", h.handleLedgerInfo)

	if h.Encrypter != nil {
		r.Post("/fhe/encrypt", h.handleEncrypt)
	}
	if h.Trail != nil {
		r.Get("/events", h.handleEvents)
	}
}

// recoverSigned decodes a signed envelope and authenticates the signer. The
// returned address is the hex-encoded signer public key.
func recoverSigned[T any](r *http.Request) (*T, ledger.Address, error) {
	msg, err := protocol.DecodeMessage[protocol.Signed[T]](r.Body)
	if err != nil {
		return nil, "", err
	}
	obj, pubkey, err := msg.Recover()
	if err != nil {
		return nil, "", err
	}
	return obj, ledger.Address(pubkey.String()), nil
}

// statusForError maps ledger failure categories onto HTTP status codes.
func statusForError(err error) int {
	switch ledger.Categorize(err) {
	case ledger.CategoryAuthorization:
		return http.StatusForbidden
	case ledger.CategoryAvailability:
		return http.StatusServiceUnavailable
	case ledger.CategoryRateLimit:
		return http.StatusTooManyRequests
	case ledger.CategoryLifecycle:
		return http.StatusConflict
	case ledger.CategoryIntegrity:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *LedgerHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Log.Error("could not encode response", "err", err)
	}
}

func (h *LedgerHandler) writeBadEnvelope(w http.ResponseWriter, err error) {
	h.Log.Warn("rejecting request with bad envelope", "err", err)
	h.writeJSON(w, http.StatusUnauthorized, protocol.StatusResponse{
		Status:  "error",
		Message: "could not authenticate request",
	})
}

func (h *LedgerHandler) writeLedgerError(w http.ResponseWriter, err error) {
	if h.Metrics != nil {
		h.Metrics.RecordRejection(ledger.Categorize(err))
	}
	h.writeJSON(w, statusForError(err), protocol.StatusResponse{
		Status:  "error",
		Message: err.Error(),
	})
}

func (h *LedgerHandler) writeOK(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusOK, protocol.StatusResponse{Status: "ok"})
}

func (h *LedgerHandler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	req, caller, err := recoverSigned[protocol.TransferOwnershipRequest](r)
	if err != nil {
		h.writeBadEnvelope(w, err)
		return
	}
	if err := h.Ledger.TransferOwnership(caller, req.NewOwner); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeOK(w)
}

func (h *LedgerHandler) handleAddProvider(w http.ResponseWriter, r *http.Request) {
	req, caller, err := recoverSigned[protocol.ProviderRequest](r)
	if err != nil {
		h.writeBadEnvelope(w, err)
		return
	}
	if err := h.Ledger.AddProvider(caller, req.Provider); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeOK(w)
}

func (h *LedgerHandler) handleRemoveProvider(w http.ResponseWriter, r *http.Request) {
	req, caller, err := recoverSigned[protocol.ProviderRequest](r)
	if err != nil {
		h.writeBadEnvelope(w, err)
		return
	}
	if err := h.Ledger.RemoveProvider(caller, req.Provider); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeOK(w)
}

func (h *LedgerHandler) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	req, caller, err := recoverSigned[protocol.SetPausedRequest](r)
	if err != nil {
		h.writeBadEnvelope(w, err)
		return
	}
	if err := h.Ledger.SetPaused(caller, req.Paused); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeOK(w)
}

func (h *LedgerHandler) handleSetCooldown(w http.ResponseWriter, r *http.Request) {
	req, caller, err := recoverSigned[protocol.SetCooldownRequest](r)
	if err != nil {
		h.writeBadEnvelope(w, err)
		return
	}
	if err := h.Ledger.SetCooldown(caller, req.Cooldown()); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeOK(w)
}

func (h *LedgerHandler) handleOpenBatch(w http.ResponseWriter, r *http.Request) {
	_, caller, err := recoverSigned[protocol.OpenBatchRequest](r)
	if err != nil {
		h.writeBadEnvelope(w, err)
		return
	}
	if err := h.Ledger.OpenBatch(caller); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeOK(w)
}

func (h *LedgerHandler) handleCloseBatch(w http.ResponseWriter, r *http.Request) {
	req, caller, err := recoverSigned[protocol.CloseBatchRequest](r)
	if err != nil {
		h.writeBadEnvelope(w, err)
		return
	}
	if err := h.Ledger.CloseBatch(caller, req.BatchID); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeOK(w)
}

func (h *LedgerHandler) handleSubmitFoldingData(w http.ResponseWriter, r *http.Request) {
	req, caller, err := recoverSigned[protocol.SubmitFoldingDataRequest](r)
	if err != nil {
		h.writeBadEnvelope(w, err)
		return
	}
	if err := h.Ledger.SubmitFoldingData(caller, req.Score); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeOK(w)
}

func (h *LedgerHandler) handleRequestDecryption(w http.ResponseWriter, r *http.Request) {
	_, caller, err := recoverSigned[protocol.RequestDecryptionRequest](r)
	if err != nil {
		h.writeBadEnvelope(w, err)
		return
	}
	requestID, err := h.Ledger.RequestBatchScoreDecryption(caller)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, protocol.RequestDecryptionResponse{RequestID: requestID})
}

// handleOracleCallback accepts the oracle's decryption result. The callback
// is authenticated by its proof rather than a signed envelope, so the body
// is a plain JSON request.
func (h *LedgerHandler) handleOracleCallback(w http.ResponseWriter, r *http.Request) {
	req, err := protocol.DecodeMessage[protocol.OracleCallbackRequest](r.Body)
	if err != nil {
		h.Log.Warn("rejecting malformed oracle callback", "err", err)
		h.writeJSON(w, http.StatusBadRequest, protocol.StatusResponse{
			Status:  "error",
			Message: "malformed callback",
		})
		return
	}
	if err := h.Ledger.OnDecryptionResult(req.RequestID, req.Cleartexts, req.Proof.Bytes()); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeOK(w)
}

func (h *LedgerHandler) handleCurrentBatch(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Ledger.CurrentBatch())
}

func (h *LedgerHandler) handleBatch(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		h.writeLedgerError(w, errors.Join(ledger.ErrInvalidBatchID, err))
		return
	}
	batch, ok := h.Ledger.Batch(ledger.BatchID(id))
	if !ok {
		h.writeJSON(w, http.StatusNotFound, protocol.StatusResponse{
			Status:  "error",
			Message: "batch not found",
		})
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

// handleEncrypt mints a ciphertext handle for a plaintext score. The route
// only exists on nodes running the development engine; a production ledger
// receives handles minted by client-side FHE tooling.
func (h *LedgerHandler) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	req, err := protocol.DecodeMessage[protocol.EncryptRequest](r.Body)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, protocol.StatusResponse{
			Status:  "error",
			Message: "malformed request",
		})
		return
	}
	handle, err := h.Encrypter.Encrypt(req.Value)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, protocol.EncryptResponse{Handle: handle})
}

func (h *LedgerHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	records := h.Trail.Records()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeJSON(w, http.StatusBadRequest, protocol.StatusResponse{
				Status:  "error",
				Message: "invalid limit",
			})
			return
		}
		if limit < len(records) {
			records = records[len(records)-limit:]
		}
	}
	h.writeJSON(w, http.StatusOK, records)
}

func (h *LedgerHandler) handleLedgerInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, protocol.LedgerInfoResponse{
		LedgerID:        h.Ledger.ID(),
		Owner:           h.Ledger.Owner(),
		Paused:          h.Ledger.Paused(),
		CooldownSeconds: uint64(h.Ledger.Cooldown().Seconds()),
		CurrentBatchID:  h.Ledger.CurrentBatchID(),
	})
}
