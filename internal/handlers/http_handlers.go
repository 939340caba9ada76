package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"

	"giveaway/internal/models"
	"giveaway/internal/services"
)

const defaultPageLimit = 50

// HTTPHandler holds the dependencies for the HTTP handlers: the giveaway
// engine and the treasury ledger.
type HTTPHandler struct {
	service *services.GiveawayService
	ledger  *services.Ledger
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.GiveawayService, ledger *services.Ledger) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		ledger:  ledger,
	}
}

// RequestIDMiddleware tags every request and response with an id for log
// correlation.
func (h *HTTPHandler) RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CallerMiddleware resolves the caller identity for mutating operations from
// the X-Account-ID header.
func (h *HTTPHandler) CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetHeader("X-Account-ID")
		if accountID == "" {
			writeError(c, services.Errf(services.KindUnauthorized, "missing X-Account-ID header"))
			c.Abort()
			return
		}
		c.Set("account_id", accountID)
		c.Next()
	}
}

// RegisterReadRoutes registers the read-only view routes.
func (h *HTTPHandler) RegisterReadRoutes(r gin.IRouter) {
	r.GET("/events", h.GetEvents)
	r.GET("/events/:id", h.GetEvent)
	r.GET("/events/:id/payouts", h.GetPayouts)
	r.GET("/events-to-finalize", h.GetEventsToFinalize)
	r.GET("/next-event-id", h.GetNextEventID)
	r.GET("/accounts/:id/balance", h.GetBalance)
}

// RegisterCallRoutes registers the mutating routes; they require a caller
// identity.
func (h *HTTPHandler) RegisterCallRoutes(r gin.IRouter) {
	r.POST("/events", h.AddEvent)
	r.POST("/events/:id/participants", h.InsertParticipants)
	r.POST("/events/:id/finalize", h.FinalizeEvent)
	r.POST("/events/:id/close", h.CloseEvent)
	r.POST("/events/:id/distribute", h.DistributePayouts)
	r.POST("/admin/active", h.SetActive)
	r.POST("/admin/whitelisted-tokens", h.WhitelistToken)
}

type addEventRequest struct {
	EventInput      models.EventInput `json:"event_input"`
	AttachedDeposit models.Balance    `json:"attached_deposit"`
}

// AddEvent handles POST /events.
func (h *HTTPHandler) AddEvent(c *gin.Context) {
	var req addEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, services.Errf(services.KindInvalidInput, "malformed request body: %v", err))
		return
	}
	eventID, err := h.service.AddEvent(c.GetString("account_id"), req.EventInput, req.AttachedDeposit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event_id": eventID})
}

// GetEvent handles GET /events/:id.
func (h *HTTPHandler) GetEvent(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}
	ev, err := h.service.GetEvent(eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// GetEvents handles GET /events.
func (h *HTTPHandler) GetEvents(c *gin.Context) {
	fromIndex, limit, ok := parsePage(c)
	if !ok {
		return
	}
	page, err := h.service.GetEvents(fromIndex, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetEventsToFinalize handles GET /events-to-finalize.
func (h *HTTPHandler) GetEventsToFinalize(c *gin.Context) {
	fromIndex, limit, ok := parsePage(c)
	if !ok {
		return
	}
	page, err := h.service.GetEventsToFinalize(fromIndex, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetNextEventID handles GET /next-event-id.
func (h *HTTPHandler) GetNextEventID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"next_event_id": h.service.NextEventID()})
}

type insertParticipantsRequest struct {
	Participants []string `json:"participants"`
}

// InsertParticipants handles POST /events/:id/participants.
func (h *HTTPHandler) InsertParticipants(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}
	var req insertParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, services.Errf(services.KindInvalidInput, "malformed request body: %v", err))
		return
	}
	if len(req.Participants) == 0 {
		writeError(c, services.Errf(services.KindInvalidInput, "participants must not be empty"))
		return
	}
	if err := h.service.InsertParticipants(c.GetString("account_id"), eventID, req.Participants); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_id": eventID, "inserted": len(req.Participants)})
}

// FinalizeEvent handles POST /events/:id/finalize.
func (h *HTTPHandler) FinalizeEvent(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}
	ev, err := h.service.FinalizeEvent(c.GetString("account_id"), eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// CloseEvent handles POST /events/:id/close.
func (h *HTTPHandler) CloseEvent(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}
	if err := h.service.CloseEvent(c.GetString("account_id"), eventID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_id": eventID, "closed": true})
}

type distributeRequest struct {
	FromIndex uint64 `json:"from_index"`
	Limit     uint64 `json:"limit"`
}

// DistributePayouts handles POST /events/:id/distribute.
func (h *HTTPHandler) DistributePayouts(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}
	var req distributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, services.Errf(services.KindInvalidInput, "malformed request body: %v", err))
		return
	}
	report, err := h.service.DistributePayouts(c.GetString("account_id"), eventID, req.FromIndex, req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetPayouts handles GET /events/:id/payouts.
func (h *HTTPHandler) GetPayouts(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}
	fromIndex, limit, ok := parsePage(c)
	if !ok {
		return
	}
	payouts, err := h.service.GetPayouts(eventID, fromIndex, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payouts)
}

// GetBalance handles GET /accounts/:id/balance against the treasury ledger.
func (h *HTTPHandler) GetBalance(c *gin.Context) {
	accountID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"account_id": accountID,
		"balance":    h.ledger.Balance(accountID),
	})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive handles POST /admin/active.
func (h *HTTPHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, services.Errf(services.KindInvalidInput, "malformed request body: %v", err))
		return
	}
	if err := h.service.SetActive(c.GetString("account_id"), req.Active); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": req.Active})
}

type whitelistTokenRequest struct {
	TokenID string `json:"token_id"`
}

// WhitelistToken handles POST /admin/whitelisted-tokens.
func (h *HTTPHandler) WhitelistToken(c *gin.Context) {
	var req whitelistTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TokenID == "" {
		writeError(c, services.Errf(services.KindInvalidInput, "token_id is required"))
		return
	}
	if err := h.service.WhitelistToken(c.GetString("account_id"), req.TokenID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": req.TokenID, "whitelisted": true})
}

func parseEventID(c *gin.Context) (uint64, bool) {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, services.Errf(services.KindInvalidInput, "invalid event id %q", c.Param("id")))
		return 0, false
	}
	return eventID, true
}

func parsePage(c *gin.Context) (fromIndex, limit uint64, ok bool) {
	fromIndex, err := parseQueryUint(c, "from_index", 0)
	if err != nil {
		writeError(c, services.Errf(services.KindInvalidInput, "invalid from_index"))
		return 0, 0, false
	}
	limit, err = parseQueryUint(c, "limit", defaultPageLimit)
	if err != nil {
		writeError(c, services.Errf(services.KindInvalidInput, "invalid limit"))
		return 0, 0, false
	}
	return fromIndex, limit, true
}

func parseQueryUint(c *gin.Context, name string, fallback uint64) (uint64, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

// writeError maps an engine error kind to an HTTP status and echoes the
// kind and message verbatim.
func writeError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := http.StatusBadRequest
	switch kind {
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindUnauthorized:
		status = http.StatusForbidden
	case services.KindTooEarly, services.KindWindowClosed,
		services.KindAlreadyFinalized, services.KindNotReady,
		services.KindNoParticipants:
		status = http.StatusConflict
	case services.KindContractDisabled:
		status = http.StatusServiceUnavailable
	case services.KindExecutionError:
		status = http.StatusInternalServerError
		logger.Errorf("request %s failed: %v", c.GetString("request_id"), err)
	}
	c.JSON(status, gin.H{"error": gin.H{"kind": kind, "message": err.Error()}})
}
