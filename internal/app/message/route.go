package message

import "github.com/gin-gonic/gin"

func RegisterRoutes(rg *gin.RouterGroup, handler Handler) {
	threads := rg.Group("/threads")
	{
		threads.POST("/:thread_id/messages", handler.SendMessage)
		threads.GET("/:thread_id/messages", handler.ListMessages)
	}

	messages := rg.Group("/messages")
	{
		messages.POST("/:message_id/receipts", handler.Acknowledge)
	}

	blocks := rg.Group("/blocks")
	{
		blocks.POST("", handler.BlockUser)
		blocks.DELETE("/:target_id", handler.UnblockUser)
	}
}
