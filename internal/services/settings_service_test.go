package services

import (
	"testing"

	"notifyhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsService_CredentialResolutionOrder(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	cfg := testConfig()
	cfg.LineChannelAccessToken = "default-token"
	svc := NewSettingsService(db, cfg)

	creds, err := svc.ResolveLineCredentials(testCtx(), user)
	require.NoError(t, err)
	assert.Equal(t, "default-token", creds.ChannelAccessToken)
	assert.Equal(t, SourceDefault, creds.TokenSource)
	assert.Equal(t, "", creds.ChannelSecret)
	assert.Equal(t, SourceNone, creds.SecretSource)

	require.NoError(t, svc.SetMany(testCtx(), map[string]string{
		models.SettingLineChannelAccessToken: "global-token",
		models.SettingLineChannelSecret:      "global-secret",
	}))
	creds, err = svc.ResolveLineCredentials(testCtx(), user)
	require.NoError(t, err)
	assert.Equal(t, "global-token", creds.ChannelAccessToken)
	assert.Equal(t, SourceGlobal, creds.TokenSource)
	assert.Equal(t, "global-secret", creds.ChannelSecret)

	require.NoError(t, svc.UpdateTenantCredentials(testCtx(), user.ID, TenantCredentialsInput{LineChannelAccessToken: strPtr("user-token")}))
	require.NoError(t, db.First(user, user.ID).Error)
	creds, err = svc.ResolveLineCredentials(testCtx(), user)
	require.NoError(t, err)
	assert.Equal(t, "user-token", creds.ChannelAccessToken)
	assert.Equal(t, SourceUser, creds.TokenSource)
	assert.Equal(t, SourceGlobal, creds.SecretSource)
}

func TestSettingsService_SetMany(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettingsService(db, testConfig())

	err := svc.SetMany(testCtx(), map[string]string{"unknown": "x"})
	assert.Equal(t, KindValidation, KindOf(err))

	require.NoError(t, svc.EnsureDefaults(testCtx()))
	require.NoError(t, svc.SetMany(testCtx(), map[string]string{models.SettingInviteCode: "one"}))
	require.NoError(t, svc.SetMany(testCtx(), map[string]string{models.SettingInviteCode: "two"}))
	require.NoError(t, svc.EnsureDefaults(testCtx()))

	all, err := svc.GetAll(testCtx())
	require.NoError(t, err)
	assert.Equal(t, "two", all[models.SettingInviteCode])
	assert.Len(t, all, len(models.KnownSettingKeys))

	code, err := svc.ResolveInviteCode(testCtx())
	require.NoError(t, err)
	assert.Equal(t, "two", code)
}

func TestSettingsService_RotateWebhookKey(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	svc := NewSettingsService(db, testConfig())

	key, err := svc.RotateWebhookKey(testCtx(), user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, user.WebhookKey, key)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, key, reloaded.WebhookKey)

	_, err = svc.RotateWebhookKey(testCtx(), 9999)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	masked := MaskSecret("abcdefghijkl")
	assert.NotContains(t, masked, "abcdefgh")
	assert.Contains(t, masked, "ijkl")
}
