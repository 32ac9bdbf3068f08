package session_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/session"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return tok
}

func TestFromToken(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   model.Session
	}{
		{
			name:   "single role claim",
			claims: jwt.MapClaims{"id": "u1", "email": "a@b.co", "role": "admin"},
			want:   model.Session{UserID: "u1", Email: "a@b.co", Roles: []model.Role{model.RoleAdmin}},
		},
		{
			name:   "role list with duplicates",
			claims: jwt.MapClaims{"userId": "u2", "roles": []string{"Contributor", "member", "contributor"}},
			want:   model.Session{UserID: "u2", Roles: []model.Role{model.RoleContributor, model.RoleMember}},
		},
		{
			name:   "subject and unknown role defaults to member",
			claims: jwt.MapClaims{"sub": "u3", "role": "superuser"},
			want:   model.Session{UserID: "u3", Roles: []model.Role{model.RoleMember}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := session.FromToken(signed(t, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromToken_Errors(t *testing.T) {
	_, err := session.FromToken("")
	assert.ErrorIs(t, err, session.ErrNoToken)

	_, err = session.FromToken("not.a.jwt")
	assert.Error(t, err)

	_, err = session.FromToken(signed(t, jwt.MapClaims{"email": "a@b.co"}))
	assert.Error(t, err)
}

func TestCan(t *testing.T) {
	member := model.Session{UserID: "u", Roles: []model.Role{model.RoleMember}}
	contributor := model.Session{UserID: "u", Roles: []model.Role{model.RoleContributor}}
	admin := model.Session{UserID: "u", Roles: []model.Role{model.RoleAdmin}}
	anonymous := model.Session{Roles: []model.Role{model.RoleAdmin}}

	assert.True(t, session.Can(member, session.ApplyContributor))
	assert.False(t, session.Can(member, session.PublishContent))
	assert.False(t, session.Can(member, session.ModerateContent))

	assert.True(t, session.Can(contributor, session.PublishContent))
	assert.False(t, session.Can(contributor, session.ModerateContent))

	assert.True(t, session.Can(admin, session.ModerateContent))
	assert.True(t, session.Can(admin, session.ReviewApplication))

	assert.False(t, session.Can(anonymous, session.ViewFeed))
}

func TestGuard(t *testing.T) {
	member := model.Session{UserID: "u", Roles: []model.Role{model.RoleMember}}

	assert.NoError(t, session.Guard(member, session.ViewFeed))
	assert.ErrorIs(t, session.Guard(member, session.ViewAdmin), session.ErrForbidden)
}

func TestDashboardFor(t *testing.T) {
	both := model.Session{UserID: "u", Roles: []model.Role{model.RoleMember, model.RoleAdmin}}
	d, ok := session.DashboardFor(both)
	require.True(t, ok)
	assert.Equal(t, model.RoleAdmin, d.Role)

	contributor := model.Session{UserID: "u", Roles: []model.Role{model.RoleContributor}}
	d, ok = session.DashboardFor(contributor)
	require.True(t, ok)
	assert.Equal(t, model.RoleContributor, d.Role)

	_, ok = session.DashboardFor(model.Session{})
	assert.False(t, ok)
}
