package dashboard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/keys"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/ui/dashboard"
)

type source struct {
	settingsErr error
}

func (s *source) DashboardStats(ctx context.Context, role model.Role) (*model.DashboardStats, error) {
	return &model.DashboardStats{Followers: 3}, nil
}

func (s *source) PendingModeration(ctx context.Context) ([]model.ModerationItem, error) {
	return nil, nil
}

func (s *source) DecideModeration(ctx context.Context, id, decision string) error {
	return nil
}

func (s *source) SubmitApplication(ctx context.Context, app model.Application) (*model.Application, error) {
	return &app, nil
}

func (s *source) Settings(ctx context.Context) (*model.Settings, error) {
	if s.settingsErr != nil {
		return nil, s.settingsErr
	}
	return &model.Settings{Language: "en"}, nil
}

func (s *source) UpdateSettings(ctx context.Context, st model.Settings) error {
	return nil
}

func member() model.Session {
	return model.Session{UserID: "u1", Roles: []model.Role{model.RoleMember}}
}

func TestLoad_SettingsFailureReachesMessage(t *testing.T) {
	c := cache.New()
	defer c.Close()

	boom := errors.New("settings unavailable")
	m := dashboard.New(c, &source{settingsErr: boom}, keys.DefaultKeyMap(), member(), 100, 30)

	cmd := m.Load()
	require.NotNil(t, cmd)
	msg, ok := cmd().(dashboard.LoadedMsg)
	require.True(t, ok)

	assert.ErrorIs(t, msg.Err, boom)
	require.NotNil(t, msg.Stats)
	assert.Equal(t, 3, msg.Stats.Followers)
	assert.Nil(t, msg.Settings)
}

func TestLoad_Succeeds(t *testing.T) {
	c := cache.New()
	defer c.Close()

	m := dashboard.New(c, &source{}, keys.DefaultKeyMap(), member(), 100, 30)

	msg, ok := m.Load()().(dashboard.LoadedMsg)
	require.True(t, ok)

	assert.NoError(t, msg.Err)
	require.NotNil(t, msg.Settings)
	assert.Equal(t, "en", msg.Settings.Language)
}
