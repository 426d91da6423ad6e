package cron

import (
	"Bazaar/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine         *cron.Cron
	fileCleanupJob *job.FileCleanupJob
}

func NewCronManager(fileCleanupJob *job.FileCleanupJob) *Manager {
	return &Manager{
		engine:         cron.New(cron.WithSeconds()),
		fileCleanupJob: fileCleanupJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob("@hourly", s.fileCleanupJob); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	s.engine.Stop()
}
