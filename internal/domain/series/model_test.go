package series

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"geniuserp/internal/core/id"
)

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		s := New(id.New(), "FACT", "domestic invoices")
		assert.NoError(t, s.Validate(ctx))
		assert.True(t, s.Active)
		assert.Equal(t, int64(0), s.LastValue)
	})

	t.Run("missing company", func(t *testing.T) {
		s := New(id.Nil(), "FACT", "")
		assert.Error(t, s.Validate(ctx))
	})

	t.Run("missing code", func(t *testing.T) {
		s := New(id.New(), "", "")
		assert.Error(t, s.Validate(ctx))
	})

	t.Run("code too long", func(t *testing.T) {
		s := New(id.New(), strings.Repeat("X", 17), "")
		assert.Error(t, s.Validate(ctx))
	})
}
