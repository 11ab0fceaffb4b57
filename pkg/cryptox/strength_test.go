package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePasswordHardRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"too short", "Ab1!xy", false},
		{"missing uppercase", "zebra-pen-41!", false},
		{"missing lowercase", "ZEBRA-PEN-41!", false},
		{"missing digit", "Zebra-Pen-Xyz!", false},
		{"missing symbol", "ZebraPen41abc", false},
		{"all classes present", "Zebra-Pen41x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidatePassword(tt.password)
			require.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, append(res.Errors, res.Warnings...))
			}
		})
	}
}

func TestValidatePasswordScore(t *testing.T) {
	t.Parallel()

	t.Run("long strong password scores above short one", func(t *testing.T) {
		short := ValidatePassword("Kq7!mZp2")
		long := ValidatePassword("Kq7!mZp2wR9&xT")
		require.True(t, short.Valid)
		require.True(t, long.Valid)
		require.Greater(t, long.Score, short.Score)
	})

	t.Run("hard rules pass but score too low", func(t *testing.T) {
		// All four classes plus length, but stuffed with penalties:
		// sequential run and two dictionary words.
		res := ValidatePassword("Password1!admin1234")
		require.Empty(t, res.Errors)
		require.Less(t, res.Score, MinPasswordScore)
		require.False(t, res.Valid)
	})

	t.Run("repeated characters penalized", func(t *testing.T) {
		plain := ValidatePassword("Xk3!vvvvQm")
		require.NotEmpty(t, plain.Warnings)
	})

	t.Run("keyboard row penalized", func(t *testing.T) {
		res := ValidatePassword("Qwerty7!Xm")
		require.NotEmpty(t, res.Warnings)
	})

	t.Run("score clamped to zero floor", func(t *testing.T) {
		res := ValidatePassword("test")
		require.GreaterOrEqual(t, res.Score, 0)
		require.False(t, res.Valid)
	})
}
