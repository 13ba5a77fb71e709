package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hexabank/account-service/internal/domain"
)

// Service is the use-case surface the HTTP layer depends on.
type Service interface {
	Register(ctx context.Context, accountNumber, accountName string) (*domain.Account, error)
	Deposit(ctx context.Context, accountNumber string, amount int64) (*domain.Account, error)
	Withdraw(ctx context.Context, accountNumber string, amount int64) (*domain.Account, error)
	Transfer(ctx context.Context, fromNumber, toNumber string, amount int64) (*domain.TransferResult, error)
	Delete(ctx context.Context, accountNumber string) error
	GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, error)
	ListActivities(ctx context.Context, accountID int64) ([]*domain.Activity, error)
}

// Handler exposes the account use cases over HTTP.
type Handler struct {
	service Service
}

// NewHandler creates a new Handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	AccountNumber string `json:"accountNumber" binding:"required"`
	AccountName   string `json:"accountName" binding:"required"`
}

type amountRequest struct {
	AccountNumber string `json:"accountNumber" binding:"required"`
	Amount        int64  `json:"amount" binding:"required"`
}

type transferRequest struct {
	FromAccountNumber string `json:"fromAccountNumber" binding:"required"`
	ToAccountNumber   string `json:"toAccountNumber" binding:"required"`
	Amount            int64  `json:"amount" binding:"required"`
}

// Register handles POST /api/accounts.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "accountNumber and accountName are required")
		return
	}

	account, err := h.service.Register(c.Request.Context(), req.AccountNumber, req.AccountName)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, toAccountResponse(account))
}

// Deposit handles POST /api/accounts/deposit.
func (h *Handler) Deposit(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "accountNumber and amount are required")
		return
	}

	account, err := h.service.Deposit(c.Request.Context(), req.AccountNumber, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, toAccountResponse(account))
}

// Withdraw handles POST /api/accounts/withdraw.
func (h *Handler) Withdraw(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "accountNumber and amount are required")
		return
	}

	account, err := h.service.Withdraw(c.Request.Context(), req.AccountNumber, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, toAccountResponse(account))
}

// Transfer handles POST /api/accounts/transfer.
func (h *Handler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "fromAccountNumber, toAccountNumber and amount are required")
		return
	}

	result, err := h.service.Transfer(c.Request.Context(), req.FromAccountNumber, req.ToAccountNumber, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, TransferResponse{
		From:          toAccountResponse(result.From),
		To:            toAccountResponse(result.To),
		Fee:           result.Fee,
		TransactionID: result.TransactionID,
	})
}

// GetAccount handles GET /api/accounts/:accountNumber.
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.service.GetAccount(c.Request.Context(), c.Param("accountNumber"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, toAccountResponse(account))
}

// ListAccounts handles GET /api/accounts.
func (h *Handler) ListAccounts(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	offset := intQuery(c, "offset", 0)
	if limit < 1 || limit > 100 || offset < 0 {
		badRequest(c, "limit must be 1-100 and offset must not be negative")
		return
	}

	accounts, err := h.service.ListAccounts(c.Request.Context(), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		responses = append(responses, toAccountResponse(a))
	}
	success(c, http.StatusOK, responses)
}

// DeleteAccount handles DELETE /api/accounts/:accountNumber.
func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("accountNumber")); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, nil)
}

// ListActivities handles GET /api/activities/:accountID.
func (h *Handler) ListActivities(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("accountID"), 10, 64)
	if err != nil {
		badRequest(c, "accountID must be an integer")
		return
	}

	activities, err := h.service.ListActivities(c.Request.Context(), accountID)
	if err != nil {
		fail(c, err)
		return
	}

	responses := make([]ActivityResponse, 0, len(activities))
	for _, a := range activities {
		responses = append(responses, toActivityResponse(a))
	}
	success(c, http.StatusOK, responses)
}

func intQuery(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}
