package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic_Get(t *testing.T) {
	s := Static{"payments.enabled": "false", "sandbox.banner": "maintenance"}
	ctx := context.Background()

	assert.Equal(t, "maintenance", s.Get(ctx, "sandbox.banner", "fallback"))
	assert.Equal(t, "fallback", s.Get(ctx, "missing", "fallback"))
}

func TestStatic_GetBool(t *testing.T) {
	s := Static{
		"payments.enabled": "false",
		"broken":           "not-a-bool",
	}
	ctx := context.Background()

	assert.False(t, s.GetBool(ctx, "payments.enabled", true))
	assert.True(t, s.GetBool(ctx, "missing", true))
	assert.True(t, s.GetBool(ctx, "broken", true), "unparseable values fall back to the default")
}
