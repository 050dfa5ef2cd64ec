package main

import (
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/cache"
	"github.com/MarcoPoloResearchLab/docrev/internal/config"
	"github.com/MarcoPoloResearchLab/docrev/internal/database"
	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime holds the storage-backed collaborators shared by the server and
// the admin commands.
type runtime struct {
	db      *gorm.DB
	docs    *docs.Service
	closers []func() error
	logger  *zap.Logger
}

func openRuntime(appConfig config.AppConfig, logger *zap.Logger, events docs.EventPublisher, recorder docs.Recorder) (*runtime, error) {
	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	rt := &runtime{db: db, logger: logger, closers: []func() error{sqlDB.Close}}

	serviceConfig := docs.ServiceConfig{
		Database:               db,
		Clock:                  time.Now,
		IDProvider:             docs.NewUUIDProvider(),
		Logger:                 logger,
		Events:                 events,
		Metrics:                recorder,
		RejectStaleSuggestions: appConfig.RejectStaleSuggestions,
	}
	if appConfig.CacheEnabled() {
		versionCache, err := cache.NewRedisVersionCache(appConfig.RedisURL, appConfig.CacheTTL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, versionCache.Close)
		serviceConfig.VersionCache = versionCache
		logger.Debug("version cache connected", zap.Duration("ttl", appConfig.CacheTTL))
	}

	service, err := docs.NewService(serviceConfig)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.docs = service

	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close() {
	for index := len(r.closers) - 1; index >= 0; index-- {
		if err := r.closers[index](); err != nil {
			r.logger.Warn("runtime close failed", zap.Error(err))
		}
	}
	r.closers = nil
}
