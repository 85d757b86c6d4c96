package api

import (
	"github.com/gin-gonic/gin"

	"github.com/youruser/certbatch/internal/config"
	"github.com/youruser/certbatch/internal/logging"
)

// NewRouter builds the gin engine with recovery, request logging, body limits
// and CORS, and registers the routes.
func NewRouter(cfg *config.Config, h *Handler, log logging.Logger) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(log))
	r.Use(corsMiddleware(cfg))
	r.Use(bodyLimit(cfg.MaxUploadBytes))

	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.POST("/generate", h.generate)
	r.POST("/preview", h.preview)

	api := r.Group("/api")
	{
		api.GET("/health", health)
		api.GET("/fonts", h.listFonts)
	}
}
