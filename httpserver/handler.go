package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/document-registry/api"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/ruteri/document-registry/ledger"
	"github.com/ruteri/document-registry/snapshot"
)

const (
	// maxBodySize is the maximum allowed request body size.
	maxBodySize = 64 * 1024

	defaultStreamKeepAlive    = 15 * time.Second
	defaultStreamWriteTimeout = 10 * time.Second
	streamBuffer              = 256
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Ledger is the part of the ledger the API serves.
type Ledger interface {
	snapshot.Source
	Submit(ctx context.Context, tx ledger.Transaction) (*ledger.Receipt, error)
	Verify(fingerprint []byte) (interfaces.Verification, error)
	ListByOwner(owner common.Address) ([]interfaces.Fingerprint, error)
	TotalCount() (uint64, error)
	Height() uint64
	Receipts(filter ledger.ReceiptFilter) ([]*ledger.Receipt, error)
	Events(filter ledger.EventFilter) ([]ledger.LoggedEvent, error)
	SubscribeEvents(ch chan<- ledger.LoggedEvent) event.Subscription
}

// Handler serves the registry API on top of a ledger.
type Handler struct {
	ledger  Ledger
	archive interfaces.StorageBackend
	log     *slog.Logger

	streamKeepAlive    time.Duration
	streamWriteTimeout time.Duration
}

// NewHandler creates the API handler. archive may be nil, in which case
// the snapshot endpoint reports 503.
func NewHandler(l Ledger, archive interfaces.StorageBackend, log *slog.Logger) *Handler {
	return &Handler{
		ledger:             l,
		archive:            archive,
		log:                log,
		streamKeepAlive:    defaultStreamKeepAlive,
		streamWriteTimeout: defaultStreamWriteTimeout,
	}
}

// WithStreamTimings overrides the event stream keep-alive interval and
// per-write timeout. Zero values keep the defaults.
func (h *Handler) WithStreamTimings(keepAlive, writeTimeout time.Duration) *Handler {
	if keepAlive > 0 {
		h.streamKeepAlive = keepAlive
	}
	if writeTimeout > 0 {
		h.streamWriteTimeout = writeTimeout
	}
	return h
}

// RegisterRoutes mounts the request/response endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/documents/register", h.HandleRegister)
	r.Post("/api/documents/revoke", h.HandleRevoke)
	r.Get("/api/documents/{fingerprint}", h.HandleVerify)
	r.Get("/api/owners/{owner}/documents", h.HandleListByOwner)
	r.Get("/api/stats", h.HandleStats)
	r.Get("/api/receipts", h.HandleReceipts)
	r.Get("/api/events", h.HandleEvents)
	r.Post("/api/admin/snapshot", h.HandleSnapshot)
}

// RegisterStreamRoutes mounts the long-lived event stream. It is kept
// apart so it can be mounted without response-buffering middleware.
func (h *Handler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/api/events/stream", h.HandleEventStream)
}

// HandleRegister registers the fingerprint in the body for the signer.
//
// URL format: POST /api/documents/register
// Required header: X-Registry-Signature
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.handleSubmit(w, r, ledger.MethodRegister)
}

// HandleRevoke revokes the fingerprint in the body on behalf of the signer.
//
// URL format: POST /api/documents/revoke
// Required header: X-Registry-Signature
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	h.handleSubmit(w, r, ledger.MethodRevoke)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request, method string) {
	tx, err := h.parseTransaction(r, method)
	if err != nil {
		h.writeError(w, err)
		return
	}

	receipt, err := h.ledger.Submit(r.Context(), tx)
	if err != nil && receipt == nil {
		h.log.Error("Transaction not applied", "err", err, "method", method, "caller", tx.Caller.Hex())
		h.writeError(w, err)
		return
	}

	resp := api.SubmitResponse{Receipt: receipt}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

func (h *Handler) parseTransaction(r *http.Request, method string) (ledger.Transaction, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return ledger.Transaction{}, &RequestError{http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err)}
	}

	var req api.DocumentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ledger.Transaction{}, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)}
	}

	sigHex := r.Header.Get(api.SignatureHeader)
	if sigHex == "" {
		return ledger.Transaction{}, &RequestError{http.StatusUnauthorized, errors.New("missing signature header")}
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return ledger.Transaction{}, &RequestError{http.StatusUnauthorized, fmt.Errorf("%w: %v", api.ErrInvalidSignature, err)}
	}
	caller, err := api.RecoverCaller(method, req.Fingerprint, sig)
	if err != nil {
		return ledger.Transaction{}, &RequestError{http.StatusUnauthorized, err}
	}

	return ledger.Transaction{Caller: caller, Method: method, Fingerprint: req.Fingerprint}, nil
}

// HandleVerify returns the verification tuple of a fingerprint. Unknown
// fingerprints are not an error: found is false and the rest is zero.
//
// URL format: GET /api/documents/{fingerprint}
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	fp, err := interfaces.NewFingerprintFromHex(chi.URLParam(r, "fingerprint"))
	if err != nil {
		h.writeError(w, &RequestError{http.StatusBadRequest, err})
		return
	}

	v, err := h.ledger.Verify(fp.Bytes())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DocumentResponse{Fingerprint: fp.String(), Verification: v})
}

// HandleListByOwner lists every fingerprint an address registered.
//
// URL format: GET /api/owners/{owner}/documents
func (h *Handler) HandleListByOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	fps, err := h.ledger.ListByOwner(owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OwnerDocumentsResponse{Owner: owner, Fingerprints: api.FingerprintStrings(fps)})
}

// HandleStats reports the document counter and ledger height.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.ledger.TotalCount()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StatsResponse{TotalDocuments: total, Height: h.ledger.Height()})
}

// HandleReceipts lists committed receipts.
//
// URL format: GET /api/receipts?from=&to=&caller=&method=&status=&limit=
func (h *Handler) HandleReceipts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter ledger.ReceiptFilter
	var err error

	if filter.FromSeq, err = parseUint(q.Get("from")); err != nil {
		h.writeError(w, err)
		return
	}
	if filter.ToSeq, err = parseUint(q.Get("to")); err != nil {
		h.writeError(w, err)
		return
	}
	if filter.Limit, err = parseLimit(q.Get("limit")); err != nil {
		h.writeError(w, err)
		return
	}
	if c := q.Get("caller"); c != "" {
		caller, err := parseAddress(c)
		if err != nil {
			h.writeError(w, err)
			return
		}
		filter.Caller = &caller
	}
	filter.Method = q.Get("method")
	filter.Status = ledger.Status(q.Get("status"))

	receipts, err := h.ledger.Receipts(filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// HandleEvents lists committed events.
//
// URL format: GET /api/events?from=&kind=&owner=&fingerprint=&limit=
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	events, err := h.ledger.Events(filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleEventStream streams committed events as server-sent events. The
// same filters as HandleEvents apply; only events committed after the
// client connected are delivered.
//
// URL format: GET /api/events/stream?kind=&owner=&fingerprint=
func (h *Handler) HandleEventStream(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// subscribe before the client sees the headers, so nothing committed
	// after that point is missed
	ch := make(chan ledger.LoggedEvent, streamBuffer)
	sub := h.ledger.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := h.flushStream(rc); err != nil {
		h.log.Warn("Event stream not supported", "err", err)
		return
	}

	keepAlive := time.NewTicker(h.streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Err():
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := h.flushStream(rc); err != nil {
				return
			}
		case ev := <-ch:
			if ev.Seq < filter.FromSeq || !filter.Matches(ev.Event) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("Failed to encode event", "err", err, "seq", ev.Seq)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d-%d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Index, ev.Kind, data); err != nil {
				h.log.Debug("Event stream client gone", "err", err)
				return
			}
			if err := h.flushStream(rc); err != nil {
				return
			}
		}
	}
}

// flushStream pushes buffered frames to the client under a fresh write
// deadline, which also lifts the server-wide write timeout for the stream.
func (h *Handler) flushStream(rc *http.ResponseController) error {
	if err := rc.SetWriteDeadline(time.Now().Add(h.streamWriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return rc.Flush()
}

// HandleSnapshot exports the current state and archives it.
//
// URL format: POST /api/admin/snapshot
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.writeError(w, &RequestError{http.StatusServiceUnavailable, errors.New("no snapshot backends configured")})
		return
	}

	snap, err := snapshot.Export(h.ledger)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, err := snapshot.Archive(r.Context(), h.archive, snap)
	if err != nil {
		h.log.Error("Failed to archive snapshot", "err", err, "backend", h.archive.Name())
		h.writeError(w, err)
		return
	}

	h.log.Info("Snapshot archived", "contentID", id.String(), "height", snap.Height, "documents", len(snap.Documents))
	writeJSON(w, http.StatusOK, api.SnapshotResponse{
		ContentID:      id.String(),
		Height:         snap.Height,
		TotalDocuments: snap.TotalDocuments,
		Location:       h.archive.LocationURI(),
	})
}

func parseEventFilter(r *http.Request) (ledger.EventFilter, error) {
	q := r.URL.Query()
	var filter ledger.EventFilter
	var err error

	if filter.FromSeq, err = parseUint(q.Get("from")); err != nil {
		return filter, err
	}
	if filter.Limit, err = parseLimit(q.Get("limit")); err != nil {
		return filter, err
	}
	filter.Kind = interfaces.EventKind(q.Get("kind"))
	if o := q.Get("owner"); o != "" {
		owner, err := parseAddress(o)
		if err != nil {
			return filter, err
		}
		filter.Owner = &owner
	}
	if f := q.Get("fingerprint"); f != "" {
		fp, err := interfaces.NewFingerprintFromHex(f)
		if err != nil {
			return filter, &RequestError{http.StatusBadRequest, err}
		}
		filter.Fingerprint = &fp
	}
	return filter, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid address %q", s)}
	}
	return common.HexToAddress(s), nil
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid number %q", s)}
	}
	return v, nil
}

func parseLimit(s string) (int, error) {
	v, err := parseUint(s)
	if err != nil {
		return 0, err
	}
	if v > 10000 {
		return 0, &RequestError{http.StatusBadRequest, fmt.Errorf("limit %d too large", v)}
	}
	return int(v), nil
}

// statusFor maps an error to the HTTP status reported for it.
func statusFor(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode
	case errors.Is(err, interfaces.ErrInvalidHashLength):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrDuplicateDocument), errors.Is(err, interfaces.ErrAlreadyRevoked):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrNotRegistered), errors.Is(err, interfaces.ErrContentNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrUnknownMethod):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err, "status", status)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
