package req

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Kind string `json:"kind" validate:"required,oneof=direct restricted"`
}

func TestDecode(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := Decode[payload](strings.NewReader(`{"kind":"direct"}`))
		require.NoError(t, err)
		assert.Equal(t, "direct", p.Kind)
	})

	t.Run("fails validation", func(t *testing.T) {
		_, err := Decode[payload](strings.NewReader(`{"kind":"bonus"}`))
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Decode[payload](strings.NewReader(`{"kind":`))
		require.Error(t, err)
	})
}
