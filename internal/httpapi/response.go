package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hexabank/account-service/internal/domain"
)

// Response is the envelope for every API reply.
type Response struct {
	Status string      `json:"status"` // SUCCESS or ERROR
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody carries a stable machine-readable code plus a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AccountResponse is the wire shape of an account.
type AccountResponse struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	Balance       int64  `json:"balance"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// TransferResponse is the wire shape of a completed transfer.
type TransferResponse struct {
	From          AccountResponse `json:"from"`
	To            AccountResponse `json:"to"`
	Fee           int64           `json:"fee"`
	TransactionID string          `json:"transactionId"`
}

// ActivityResponse is the wire shape of a ledger entry.
type ActivityResponse struct {
	ID                     int64   `json:"id"`
	AccountID              int64   `json:"accountId"`
	ActivityType           string  `json:"activityType"`
	Amount                 int64   `json:"amount"`
	Fee                    int64   `json:"fee"`
	BalanceAfter           int64   `json:"balanceAfter"`
	ReferenceAccountID     *int64  `json:"referenceAccountId,omitempty"`
	ReferenceAccountNumber *string `json:"referenceAccountNumber,omitempty"`
	TransactionID          *string `json:"transactionId,omitempty"`
	CreatedAt              string  `json:"createdAt"`
}

func toAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		AccountName:   a.AccountName,
		Balance:       a.Balance,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toActivityResponse(a *domain.Activity) ActivityResponse {
	return ActivityResponse{
		ID:                     a.ID,
		AccountID:              a.AccountID,
		ActivityType:           string(a.Type),
		Amount:                 a.Amount,
		Fee:                    a.Fee,
		BalanceAfter:           a.BalanceAfter,
		ReferenceAccountID:     a.ReferenceAccountID,
		ReferenceAccountNumber: a.ReferenceAccountNumber,
		TransactionID:          a.TransactionID,
		CreatedAt:              a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Status: "SUCCESS", Data: data})
}

// errorMapping ties each domain failure kind to its HTTP status and stable
// code. Exhausted optimistic-lock conflicts get 409 and their own code so
// callers can tell "safe to retry" apart from a domain-rule violation.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	{domain.ErrDuplicateAccountNumber, http.StatusConflict, "DUPLICATE_ACCOUNT_NUMBER"},
	{domain.ErrInvalidAccountNumber, http.StatusBadRequest, "INVALID_ACCOUNT_NUMBER"},
	{domain.ErrInvalidAccountName, http.StatusBadRequest, "INVALID_ACCOUNT_NAME"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
	{domain.ErrDailyWithdrawLimitExceeded, http.StatusUnprocessableEntity, "DAILY_WITHDRAW_LIMIT_EXCEEDED"},
	{domain.ErrDailyTransferLimitExceeded, http.StatusUnprocessableEntity, "DAILY_TRANSFER_LIMIT_EXCEEDED"},
	{domain.ErrSameAccountTransfer, http.StatusBadRequest, "SAME_ACCOUNT_TRANSFER"},
	{domain.ErrOptimisticLock, http.StatusConflict, "OPTIMISTIC_LOCK_CONFLICT"},
}

func fail(c *gin.Context, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			c.JSON(m.status, Response{
				Status: "ERROR",
				Error:  &ErrorBody{Code: m.code, Message: m.err.Error()},
			})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, Response{
		Status: "ERROR",
		Error:  &ErrorBody{Code: "INTERNAL_ERROR", Message: "an internal error occurred"},
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Status: "ERROR",
		Error:  &ErrorBody{Code: "INVALID_REQUEST", Message: message},
	})
}
