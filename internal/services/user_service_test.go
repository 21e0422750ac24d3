package services

import (
	"testing"

	"notifyhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_CreateAddsDefaultTemplate(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "root", models.RoleAdmin)
	svc := NewUserService(db, testConfig())

	user, err := svc.Create(testCtx(), admin, CreateUserInput{Username: "alice", Password: "password1", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, 100, user.MessageQuota)
	assert.NotEmpty(t, user.WebhookKey)
	require.NotNil(t, user.CreatedBy)
	assert.Equal(t, admin.ID, *user.CreatedBy)

	var templates []models.Template
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&templates).Error)
	require.Len(t, templates, 1)
	assert.Equal(t, models.DefaultTemplateContent, templates[0].Content)

	_, err = svc.Create(testCtx(), admin, CreateUserInput{Username: "alice", Password: "password1"})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestUserService_CreateValidation(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "root", models.RoleAdmin)
	svc := NewUserService(db, testConfig())

	cases := []CreateUserInput{
		{Username: "a", Password: "password1"},
		{Username: "alice", Password: "123"},
		{Username: "alice", Password: "password1", Role: "owner"},
		{Username: "alice", Password: "password1", Email: "not-an-email"},
	}
	for _, in := range cases {
		_, err := svc.Create(testCtx(), admin, in)
		assert.Equal(t, KindValidation, KindOf(err), "input %+v", in)
	}
}

func TestUserService_ManagerRestrictions(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "root", models.RoleAdmin)
	svc := NewUserService(db, testConfig())

	manager, err := svc.Create(testCtx(), admin, CreateUserInput{Username: "manager", Password: "password1", CanCreateUsers: true})
	require.NoError(t, err)
	plain := createTestUser(t, db, "plain", models.RoleUser)

	_, err = svc.Create(testCtx(), plain, CreateUserInput{Username: "x1", Password: "password1"})
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = svc.Create(testCtx(), manager, CreateUserInput{Username: "x2", Password: "password1", Role: models.RoleAdmin})
	assert.Equal(t, KindForbidden, KindOf(err))

	child, err := svc.Create(testCtx(), manager, CreateUserInput{Username: "child", Password: "password1"})
	require.NoError(t, err)

	visible, err := svc.List(testCtx(), manager)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, child.ID, visible[0].ID)

	all, err := svc.List(testCtx(), admin)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = svc.Get(testCtx(), manager, plain.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestUserService_Update(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "root", models.RoleAdmin)
	user := createTestUser(t, db, "alice", models.RoleUser)
	svc := NewUserService(db, testConfig())
	auth := NewAuthService(db, testConfig())

	session, err := auth.Login(testCtx(), "alice", testPassword)
	require.NoError(t, err)

	quota := 5
	disabled := false
	updated, err := svc.Update(testCtx(), admin, user.ID, UpdateUserInput{MessageQuota: &quota, IsActive: &disabled})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.MessageQuota)
	assert.False(t, updated.IsActive)

	// Disabling ends existing sessions
	_, err = auth.Authenticate(testCtx(), session.AccessToken)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	_, err = svc.Update(testCtx(), admin, admin.ID, UpdateUserInput{IsActive: &disabled})
	assert.Equal(t, KindValidation, KindOf(err))
	demote := models.RoleUser
	_, err = svc.Update(testCtx(), admin, admin.ID, UpdateUserInput{Role: &demote})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestUserService_ManagerCannotRaiseOwnQuota(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "root", models.RoleAdmin)
	manager := createTestUser(t, db, "manager", models.RoleUser)
	manager.CanCreateUsers = true
	require.NoError(t, db.Model(manager).Update("can_create_users", true).Error)
	svc := NewUserService(db, testConfig())

	quota := 1000000
	_, err := svc.Update(testCtx(), manager, manager.ID, UpdateUserInput{MessageQuota: &quota})
	assert.Equal(t, KindForbidden, KindOf(err))

	var stored models.User
	require.NoError(t, db.First(&stored, manager.ID).Error)
	assert.Equal(t, 100, stored.MessageQuota)

	// Other fields of the own account stay editable
	name := "Manny"
	updated, err := svc.Update(testCtx(), manager, manager.ID, UpdateUserInput{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Manny", updated.DisplayName)

	// Admins may still set quotas, their own included
	updated, err = svc.Update(testCtx(), admin, manager.ID, UpdateUserInput{MessageQuota: &quota})
	require.NoError(t, err)
	assert.Equal(t, quota, updated.MessageQuota)
	_, err = svc.Update(testCtx(), admin, admin.ID, UpdateUserInput{MessageQuota: &quota})
	assert.NoError(t, err)
}

func TestUserService_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "root", models.RoleAdmin)
	user := createTestUser(t, db, "alice", models.RoleUser)
	svc := NewUserService(db, testConfig())

	customer := createTestCustomer(t, db, user.ID, "U1", "Amy")
	require.NoError(t, db.Create(&models.LineUser{UserID: user.ID, LineUID: "U1"}).Error)
	require.NoError(t, db.Create(&models.Message{UserID: user.ID, CustomerID: customer.ID, Sender: models.SenderSystem}).Error)
	_, err := NewAuthService(db, testConfig()).Login(testCtx(), "alice", testPassword)
	require.NoError(t, err)

	assert.Equal(t, KindValidation, KindOf(svc.Delete(testCtx(), admin, admin.ID)))
	require.NoError(t, svc.Delete(testCtx(), admin, user.ID))

	for _, model := range []interface{}{&models.Customer{}, &models.LineUser{}, &models.Message{}, &models.Template{}, &models.UserToken{}, &models.RefreshToken{}} {
		var count int64
		require.NoError(t, db.Model(model).Where("user_id = ?", user.ID).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}
	var users int64
	db.Model(&models.User{}).Where("id = ?", user.ID).Count(&users)
	assert.Zero(t, users)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, testConfig())

	require.NoError(t, svc.EnsureAdmin(testCtx()))
	require.NoError(t, svc.EnsureAdmin(testCtx()))

	var admins []models.User
	require.NoError(t, db.Where("role = ?", models.RoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin", admins[0].Username)
	assert.True(t, CheckPassword(admins[0].Password, "admin"))
}

func TestUserService_FindByWebhookKey(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	svc := NewUserService(db, testConfig())

	found, err := svc.FindByWebhookKey(testCtx(), user.WebhookKey)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.FindByWebhookKey(testCtx(), "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = svc.FindByWebhookKey(testCtx(), "")
	assert.Equal(t, KindNotFound, KindOf(err))
}
