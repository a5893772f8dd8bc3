package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops-notify-be/internal/dto"
	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/internal/repository/contract"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/datatypes"
)

// PreferenceService resolves per-user channel preferences with a
// lazy-default policy: a user without a stored record gets the
// process-wide defaults, and nothing is persisted until they explicitly
// update.
type PreferenceService struct {
	repo   contract.NotificationRepository
	cache  *gocache.Cache
	logger logger.ILogger
}

func NewPreferenceService(repo contract.NotificationRepository, log logger.ILogger) *PreferenceService {
	return &PreferenceService{
		repo:   repo,
		cache:  gocache.New(5*time.Minute, 10*time.Minute),
		logger: log,
	}
}

// Resolve loads the user's preferences. A missing record resolves to
// DefaultPreferences. A storage failure also resolves to defaults but is
// reported as ErrPreferencesUnavailable so callers can log it; delivery
// must proceed either way.
func (s *PreferenceService) Resolve(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error) {
	if cached, ok := s.cache.Get(userID.String()); ok {
		prefs := cached.(model.NotificationPreferences)
		return &prefs, nil
	}

	prefs, err := s.repo.GetPreferences(ctx, userID)
	if errors.Is(err, contract.ErrNotFound) {
		// Lazy-default, not lazy-create.
		prefs = model.DefaultPreferences(userID)
		s.cache.SetDefault(userID.String(), *prefs)
		return prefs, nil
	}
	if err != nil {
		s.logger.Warn("PreferenceService", "Falling back to default preferences", map[string]interface{}{
			"user_id": userID, "error": err.Error(),
		})
		return model.DefaultPreferences(userID), fmt.Errorf("%w: %v", ErrPreferencesUnavailable, err)
	}

	s.cache.SetDefault(userID.String(), *prefs)
	return prefs, nil
}

// Update replaces the user's stored preferences (upsert) and drops the
// cache entry so the next resolve sees the new policy.
func (s *PreferenceService) Update(ctx context.Context, userID uuid.UUID, req dto.UpdatePreferencesRequest) (*model.NotificationPreferences, error) {
	frequency := req.Frequency
	if frequency == "" {
		frequency = model.FrequencyImmediate
	}

	prefs := &model.NotificationPreferences{
		UserID:     userID,
		Email:      datatypes.NewJSONType(channelPref(req.Email)),
		Push:       datatypes.NewJSONType(channelPref(req.Push)),
		SMS:        datatypes.NewJSONType(channelPref(req.SMS)),
		InApp:      datatypes.NewJSONType(channelPref(req.InApp)),
		QuietHours: datatypes.NewJSONType(quietHours(req.QuietHours)),
		Frequency:  frequency,
	}

	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	s.cache.Delete(userID.String())
	return prefs, nil
}

func channelPref(req dto.ChannelPreferenceRequest) model.ChannelPreference {
	types := req.Types
	if types == nil {
		types = []model.NotificationType{}
	}
	return model.ChannelPreference{Enabled: req.Enabled, Types: types}
}

func quietHours(req dto.QuietHoursRequest) model.QuietHours {
	qh := model.QuietHours{
		Enabled:  req.Enabled,
		Start:    req.Start,
		End:      req.End,
		Timezone: req.Timezone,
	}
	if qh.Timezone == "" {
		qh.Timezone = "UTC"
	}
	return qh
}
