package wire

import (
	"Bazaar/internal/api"
	"Bazaar/internal/api/config"
	"Bazaar/internal/api/handler"
	"Bazaar/internal/job"
	"Bazaar/internal/pkg/cron"
	mongopkg "Bazaar/internal/pkg/mongo"
	"Bazaar/internal/repository"
	"Bazaar/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router      *gin.Engine
	DB          *gorm.DB
	ChatService service.ChatService
	CronMgr     *cron.Manager
}

func BuildApplication(db *gorm.DB, mongoDB *mongo.Database, cfg *config.Config) (*ApplicationContainer, error) {
	userRepo := repository.NewUserRepo(db)
	messageRepo := repository.NewMessageRepo(db)
	dialogRepo := repository.NewDialogRepo(db)
	fileRepo := repository.NewFileRepo(db)
	archiveRepo := mongopkg.NewArchiveRepo(mongoDB)

	chatService := service.NewChatService(userRepo, messageRepo, dialogRepo, archiveRepo, cfg.Chat.ArchiveWorkers)
	fileService := service.NewFileService(fileRepo)
	groups := service.NewRedisGroupLayer()

	handlers := &api.HandlersGroup{
		WsHandler:   handler.NewWsHandler(chatService, groups, &cfg.Chat),
		IMHandler:   handler.NewIMHandler(chatService),
		FileHandler: handler.NewFileHandler(fileService),
	}

	router := api.SetupRouter(handlers)

	cronMgr := cron.NewCronManager(job.NewFileCleanupJob(fileService, &cfg.Chat))

	return &ApplicationContainer{
		Router:      router,
		DB:          db,
		ChatService: chatService,
		CronMgr:     cronMgr,
	}, nil
}
