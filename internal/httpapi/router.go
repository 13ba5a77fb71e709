package httpapi

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with all account routes registered.
func NewRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		accounts := api.Group("/accounts")
		{
			accounts.POST("", handler.Register)
			accounts.GET("", handler.ListAccounts)
			accounts.POST("/deposit", handler.Deposit)
			accounts.POST("/withdraw", handler.Withdraw)
			accounts.POST("/transfer", handler.Transfer)
			accounts.GET("/:accountNumber", handler.GetAccount)
			accounts.DELETE("/:accountNumber", handler.DeleteAccount)
		}

		api.GET("/activities/:accountID", handler.ListActivities)
	}

	return router
}
