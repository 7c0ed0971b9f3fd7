package api

import (
	"net/http"
	"time"

	"courierdispatch/internal/buildinfo"
)

// DebugJSON reports build info and the effective, non-secret configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	cfg := s.Cfg
	tun := s.Dispatch.Scheduler.Tuning()
	classes := make([]string, 0, len(s.Dispatch.Classes))
	for _, t := range s.Dispatch.Classes {
		classes = append(classes, t.Vehicle.String())
	}
	taxis := make([]string, 0, len(s.Dispatch.Taxis))
	for _, t := range s.Dispatch.Taxis {
		taxis = append(taxis, t.Vehicle.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"config": map[string]any{
			"addr":             cfg.Server.Addr(),
			"mode":             cfg.Server.Mode,
			"has_database_dsn": cfg.Database.DSN != "",
			"has_redis_url":    cfg.Redis.URL != "",
			"rate_rps":         cfg.Rate.RPS,
			"rate_burst":       cfg.Rate.Burst,
			"variant":          tun.Variant.String(),
			"workers":          tun.Workers,
			"max_path_length":  tun.MaxPathLength,
			"classes":          classes,
			"taxis":            taxis,
		},
	})
}
