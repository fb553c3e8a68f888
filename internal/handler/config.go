package handler

import (
	"net/http"

	"github.com/bloodlink/internal/config"
	"github.com/bloodlink/internal/model"
)

// ConfigHandler serves public configuration: matching defaults and the
// push public key. No authentication, nothing secret goes here.
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetDonorConfig returns the matching defaults clients mirror: blood groups
// for pickers, the nearby radius fallback and the live refresh interval.
func (h *ConfigHandler) GetDonorConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"blood_groups":          model.BloodGroups,
		"default_radius_meters": h.cfg.DefaultRadiusMeters(),
		"poll_interval_seconds": int(h.cfg.PollInterval().Seconds()),
	})
}

// GetPushConfig returns the public VAPID key when push is configured.
func (h *ConfigHandler) GetPushConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PushServiceURL == "" || h.cfg.PushVAPIDPublicKey == "" {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":    true,
		"public_key": h.cfg.PushVAPIDPublicKey,
	})
}
