package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dem.asc", Coalesce("", "dem.asc", "other.asc"))
	assert.Equal(t, 3, Coalesce(0, 0, 3))
	assert.Equal(t, "", Coalesce[string]())
	assert.Equal(t, RoleOther, Coalesce(RoleOther, RoleOther))
}

func TestDeref(t *testing.T) {
	t.Parallel()

	rate := 30.0
	assert.Equal(t, 30.0, Deref(&rate, 60))
	assert.Equal(t, 60.0, Deref(nil, 60.0))
	assert.Equal(t, "", Deref(new(string), "default"))
}
