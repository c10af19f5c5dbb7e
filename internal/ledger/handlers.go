package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the ledger service over HTTP.
type Handlers struct {
	svc *Service
}

// NewHandlers creates the handler set.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterRoutes mounts the ledger API on r.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users", h.registerUser)
	r.GET("/users", h.listUsers)
	r.GET("/users/:id", h.getUser)
	r.POST("/users/:id/unlock", h.unlockUser)

	r.GET("/accounts", h.listAccounts)
	r.GET("/accounts/:number", h.getAccount)
	r.POST("/accounts/:number/freeze", h.freezeAccount)

	r.POST("/login", h.login)

	r.POST("/transfers", h.transfer)
	r.POST("/transfers/confirm", h.confirmStepUp)
	r.GET("/transactions", h.listTransactions)
	r.GET("/transactions/:id", h.getTransaction)
	r.POST("/transactions/:id/review", h.reviewTransaction)

	r.GET("/logins", h.listLogins)
	r.GET("/stats/detection", h.detectionStats)
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateUser):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrFrozenAccount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidCode):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (h *Handlers) registerUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, a, err := h.svc.RegisterUser(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "account": a})
}

func (h *Handlers) listUsers(c *gin.Context) {
	users, err := h.svc.Users(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handlers) getUser(c *gin.Context) {
	u, err := h.svc.User(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	accts, err := h.svc.AccountsByUser(c.Request.Context(), u.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "accounts": accts})
}

func (h *Handlers) unlockUser(c *gin.Context) {
	if err := h.svc.UnlockUser(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}

func (h *Handlers) listAccounts(c *gin.Context) {
	accts, err := h.svc.Accounts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accts})
}

func (h *Handlers) getAccount(c *gin.Context) {
	a, err := h.svc.Account(c.Request.Context(), c.Param("number"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handlers) freezeAccount(c *gin.Context) {
	var req struct {
		Frozen bool `json:"frozen"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.SetFrozen(c.Request.Context(), c.Param("number"), req.Frozen); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frozen": req.Frozen})
}

func (h *Handlers) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if out.Outcome != LoginSuccess {
		status = http.StatusUnauthorized
	}
	c.JSON(status, out)
}

func (h *Handlers) transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Transfer(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	// Blocked and parked outcomes are data, not errors; 202 signals
	// that the attempt was decided but did not (yet) move money.
	status := http.StatusOK
	if out.Status == StatusBlocked || out.Status == OutcomeStepUpPending {
		status = http.StatusAccepted
	}
	c.JSON(status, out)
}

func (h *Handlers) confirmStepUp(c *gin.Context) {
	var req struct {
		PendingID string `json:"pending_id" binding:"required"`
		Code      string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.ConfirmStepUp(c.Request.Context(), req.PendingID, req.Code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) listTransactions(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	txns, err := h.svc.Transactions(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

func (h *Handlers) getTransaction(c *gin.Context) {
	t, err := h.svc.Transaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handlers) reviewTransaction(c *gin.Context) {
	var req struct {
		Status     string `json:"status" binding:"required"`
		ReviewedBy string `json:"reviewed_by" binding:"required"`
		Note       string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.svc.ReviewTransaction(c.Request.Context(), c.Param("id"), req.Status, req.ReviewedBy, req.Note)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handlers) listLogins(c *gin.Context) {
	logs, err := h.svc.LoginLogs(c.Request.Context(), intQuery(c, "limit", 100))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logins": logs})
}

func (h *Handlers) detectionStats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
