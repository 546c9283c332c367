package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/clubmgr/transfer-services/internal/comm"
	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
	"github.com/clubmgr/transfer-services/internal/transfersvc/service"
	"github.com/clubmgr/transfer-services/internal/transfersvc/ws"
)

// AuditReader exposes the transfer log to the admin view.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int64) ([]*models.TransferLog, error)
}

type Handler struct {
	tokenAuth   *jwtauth.JWTAuth
	negotiation *service.NegotiationService
	ledger      *service.LedgerService
	roster      *service.RosterService
	audit       AuditReader
	hub         *ws.Hub
	upgrader    websocket.Upgrader
}

func NewHandler(negotiation *service.NegotiationService, ledger *service.LedgerService,
	roster *service.RosterService, audit AuditReader, hub *ws.Hub) *Handler {
	return &Handler{
		negotiation: negotiation,
		ledger:      ledger,
		roster:      roster,
		audit:       audit,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.CreateResponse(w, Response{
		Message: "request failed",
		Code:    statusFor(err),
		Error:   err.Error(),
	})
}

// statusFor maps the domain error taxonomy onto HTTP statuses so the
// caller can always tell funds from conflict from bad input.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrMissingDescription),
		errors.Is(err, models.ErrSelfBid),
		errors.Is(err, models.ErrPlayerUnassigned):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrBidNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrOwnershipConflict),
		errors.Is(err, models.ErrStaleBid),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrAccountAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// identity reads the trusted club id and role from the JWT claims the
// identity service issued.
func identity(r *http.Request) (clubID, role string) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", ""
	}
	if v, ok := claims["club_id"].(string); ok {
		clubID = v
	}
	if v, ok := claims["role"].(string); ok {
		role = v
	}
	return clubID, role
}

// RequireAdmin rejects callers whose token does not carry the admin role.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, role := identity(r); role != "admin" {
			h.CreateResponse(w, Response{Message: "admin role required", Code: http.StatusForbidden})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "transfer service is running at port " + os.Getenv("TRANSFER_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}

// --- bids ---

func (h *Handler) ProposeBid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID    string `json:"player_id"`
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest})
		return
	}

	clubID, _ := identity(r)
	bid, err := h.negotiation.Propose(r.Context(), clubID, req.PlayerID, req.Amount, req.Description)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "bid proposed", Code: http.StatusCreated, Data: bid})
}

func (h *Handler) GetBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := strconv.ParseInt(chi.URLParam(r, "bidID"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid bid id", Code: http.StatusBadRequest})
		return
	}
	bid, err := h.negotiation.Get(r.Context(), bidID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: bid})
}

func (h *Handler) ListBids(w http.ResponseWriter, r *http.Request) {
	var (
		bids []*models.Bid
		err  error
	)
	if state := r.URL.Query().Get("state"); state != "" {
		bids, err = h.negotiation.ListByState(r.Context(), models.BidState(state))
	} else {
		bids, err = h.negotiation.List(r.Context())
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: bids})
}

func (h *Handler) MyBids(w http.ResponseWriter, r *http.Request) {
	clubID, _ := identity(r)
	bids, err := h.negotiation.ListByBidder(r.Context(), clubID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: bids})
}

func (h *Handler) IncomingBids(w http.ResponseWriter, r *http.Request) {
	clubID, _ := identity(r)
	bids, err := h.negotiation.ListIncoming(r.Context(), clubID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: bids})
}

func (h *Handler) SellerDecision(w http.ResponseWriter, r *http.Request) {
	bidID, err := strconv.ParseInt(chi.URLParam(r, "bidID"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid bid id", Code: http.StatusBadRequest})
		return
	}
	var req struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest})
		return
	}

	clubID, _ := identity(r)
	bid, err := h.negotiation.SellerDecision(r.Context(), bidID, clubID, req.Accept)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "decision recorded", Code: http.StatusOK, Data: bid})
}

func (h *Handler) AdminDecision(w http.ResponseWriter, r *http.Request) {
	bidID, err := strconv.ParseInt(chi.URLParam(r, "bidID"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid bid id", Code: http.StatusBadRequest})
		return
	}
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest})
		return
	}

	bid, err := h.negotiation.AdminDecision(r.Context(), bidID, req.Approve)
	if err != nil {
		// The bid (possibly in its failed terminal state) still goes
		// back so the admin sees what happened.
		h.CreateResponse(w, Response{
			Message: "settlement failed",
			Code:    statusFor(err),
			Data:    bid,
			Error:   err.Error(),
		})
		return
	}
	h.CreateResponse(w, Response{Message: "decision recorded", Code: http.StatusOK, Data: bid})
}

// --- accounts ---

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubID")
	balance, err := h.ledger.GetBalance(r.Context(), clubID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{
		Message: "ok",
		Code:    http.StatusOK,
		Data:    comm.BalanceData{ClubID: clubID, Balance: comm.FormatAmount(balance)},
	})
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClubID         string `json:"club_id"`
		InitialBalance int64  `json:"initial_balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClubID == "" {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest})
		return
	}
	if err := h.ledger.CreateAccount(r.Context(), req.ClubID, req.InitialBalance); err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "account created", Code: http.StatusCreated})
}

func (h *Handler) GrantCash(w http.ResponseWriter, r *http.Request) {
	h.adjustBalance(w, r, h.ledger.Credit)
}

func (h *Handler) DeductCash(w http.ResponseWriter, r *http.Request) {
	h.adjustBalance(w, r, h.ledger.Debit)
}

func (h *Handler) adjustBalance(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, clubID string, amount int64) error) {
	clubID := chi.URLParam(r, "clubID")
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest})
		return
	}
	if err := apply(r.Context(), clubID, req.Amount); err != nil {
		h.fail(w, err)
		return
	}
	balance, err := h.ledger.GetBalance(r.Context(), clubID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{
		Message: "balance updated",
		Code:    http.StatusOK,
		Data:    comm.BalanceData{ClubID: clubID, Balance: comm.FormatAmount(balance)},
	})
}

// --- roster ---

func (h *Handler) GetOwner(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	owner, err := h.roster.OwnerOf(r.Context(), playerID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{
		Message: "ok",
		Code:    http.StatusOK,
		Data:    models.PlayerOwnership{PlayerID: playerID, ClubID: owner},
	})
}

func (h *Handler) SetOwner(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	var req struct {
		ClubID string `json:"club_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest})
		return
	}
	if err := h.roster.SetOwner(r.Context(), playerID, req.ClubID); err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "owner updated", Code: http.StatusOK})
}

// --- transfer logs ---

func (h *Handler) TransferLogs(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		h.CreateResponse(w, Response{Message: "transfer log is not configured", Code: http.StatusServiceUnavailable})
		return
	}
	limit := int64(100)
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: logs})
}

// --- event stream ---

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	h.hub.StoreConnection(socketId, conn)

	go h.drainConnection(conn, socketId)
}

// drainConnection keeps the read side open until the client goes away.
// Dashboards are listen-only; anything they send is discarded.
func (h *Handler) drainConnection(conn *websocket.Conn, socketId string) {
	defer func() {
		conn.Close()
		h.hub.HandleDisconnect(socketId)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			}
			return
		}
	}
}
