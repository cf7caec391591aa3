package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{in: "Admin", want: RoleAdmin},
		{in: " teacher ", want: RoleTeacher},
		{in: "STUDENT", want: RoleStudent},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}

	_, err := ParseRole("root")
	assert.True(t, IsInvalidInput(err))
}

func TestRole_AtLeast(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleTeacher))
	assert.True(t, RoleAdmin.AtLeast(RoleStudent))
	assert.True(t, RoleTeacher.AtLeast(RoleTeacher))
	assert.False(t, RoleStudent.AtLeast(RoleTeacher))
	assert.False(t, RoleTeacher.AtLeast(RoleAdmin))
	assert.False(t, Role(0).AtLeast(RoleStudent))
}

func mustParse(t *testing.T, s string) Role {
	t.Helper()
	r, err := ParseRole(s)
	require.NoError(t, err)
	return r
}
