package job

import (
	"Bazaar/internal/api/config"
	"Bazaar/internal/service"
	"context"
	log "log/slog"
	"time"
)

// FileCleanupJob 定期清理超过保留时长且从未被消息引用的聊天附件
type FileCleanupJob struct {
	fileService service.FileService
	ttl         time.Duration
}

func NewFileCleanupJob(fileService service.FileService, cfg *config.ChatConfig) *FileCleanupJob {
	return &FileCleanupJob{
		fileService: fileService,
		ttl:         time.Duration(cfg.FileTTLHours) * time.Hour,
	}
}

func (s *FileCleanupJob) Run() {
	ctx := context.Background()
	log.Info("start file cleanup job")

	count, err := s.fileService.CleanupOrphans(ctx, s.ttl)
	if err != nil {
		log.Error("file cleanup job failed", "err", err)
		return
	}

	if count > 0 {
		log.Info("file cleanup job finished", "cleaned_count", count)
	}
}
