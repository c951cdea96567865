package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasswordValidator(t *testing.T) {
	v := NewPasswordValidator()

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"Valid", "counsel2026", nil},
		{"Valid with symbols", "Gabs!2026pw", nil},
		{"Empty", "", ErrEmptyPassword},
		{"Too short", "ab1", ErrPasswordTooShort},
		{"Exactly minimum", "passwd12", nil},
		{"Too long", strings.Repeat("a", 72) + "1", ErrPasswordTooLong},
		{"No letters", "12345678", ErrPasswordNoLetter},
		{"No digits", "passwordonly", ErrPasswordNoDigit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
