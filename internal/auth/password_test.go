package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Abcdef1!", true},
		{"valid all symbol kinds", "aA1@$!%*#?&", true},
		{"minimum length", "aA1@bc", true},
		{"no upper digit symbol", "abcdef", false},
		{"no symbol", "Abcdef1", false},
		{"no digit", "Abcdef!", false},
		{"no lowercase", "ABCDEF1!", false},
		{"too short", "aA1@b", false},
		{"too long", "Abcdef1!Abcdef1!Abcde", false},
		{"disallowed character", "Abcdef1(", false},
		{"space disallowed", "Abcde f1!", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrPasswordPolicy)
			}
		})
	}
}
