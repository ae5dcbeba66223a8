package health

import (
	"net/http"

	"backend/internal/utils"

	"github.com/gin-gonic/gin"
)

type HealthController struct {
	checker *utils.HealthChecker
}

func NewHandler(checker *utils.HealthChecker) *HealthController {
	return &HealthController{checker: checker}
}

func (h *HealthController) Check(c *gin.Context) {
	status := h.checker.Check(c.Request.Context())

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, status)
}
