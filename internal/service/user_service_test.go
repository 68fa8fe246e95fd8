package service

import (
	"testing"

	"exam_backend/internal/model"
	"exam_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsersByRole(t *testing.T) {
	env := newTestEnv(t)
	makeUser(t, env.db, "alice@example.com", model.Student)
	makeUser(t, env.db, "bob@example.com", model.Student)
	makeUser(t, env.db, "admin@example.com", model.Admin)

	users, total, err := env.user.ListUsers("student", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, users, 2)

	_, total, err = env.user.ListUsers("", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestSetDisabled(t *testing.T) {
	env := newTestEnv(t)
	user := makeUser(t, env.db, "alice@example.com", model.Student)

	disabled, err := env.user.SetDisabled(user.ID, true)
	require.NoError(t, err)
	assert.True(t, disabled.Disabled)

	enabled, err := env.user.SetDisabled(user.ID, false)
	require.NoError(t, err)
	assert.False(t, enabled.Disabled)

	_, err = env.user.SetDisabled("no-such-user", true)
	require.Error(t, err)
	assert.Equal(t, util.KindNotFound, util.KindOf(err))
}
