package api

import "Bazaar/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	WsHandler   *handler.WsHandler
	IMHandler   *handler.IMHandler
	FileHandler *handler.FileHandler
}
