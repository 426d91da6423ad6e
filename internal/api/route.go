package api

import (
	"Bazaar/internal/api/middleware"
	"Bazaar/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		imGroup := apiGroup.Group("/im")
		{
			// WS 握手自带 access_token 鉴权，不走 Bearer 中间件
			imGroup.GET("/ws", group.WsHandler.Connect)

			authGroup := imGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware())
			{
				authGroup.GET("/messages", group.IMHandler.GetMessages)
				authGroup.GET("/dialogs", group.IMHandler.GetDialogs)
				authGroup.GET("/self", group.IMHandler.GetSelf)
				authGroup.GET("/users", group.IMHandler.GetUsers)
				authGroup.POST("/upload", group.FileHandler.Upload)
				authGroup.GET("/file/:file_id", group.FileHandler.GetFile)
			}
		}
	}

	return r
}
