package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"Seeded demo password is rejected", "password123", "at least 12 characters"},
		{"Reset form example", "Inkwell-Draft-2024", ""},
		{"Twelve characters", "Quill&Ink202", ""},
		{"Upper bound", "Q" + strings.Repeat("x", 125) + "1!", ""},
		{"Over upper bound", "Q" + strings.Repeat("x", 126) + "1!", "must not exceed 128"},
		{"No upper", "quill&ink2024", "uppercase"},
		{"No lower", "QUILL&INK2024", "lowercase"},
		{"No digit", "Quill&InkPots", "digit"},
		{"No special", "QuillInk20245", "special character"},
		{"Accented letters count", "ÉditionSpéciale9!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// Usernames double as author display names on posts.
func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  string
	}{
		{"Byline handle", "ada_lovelace", ""},
		{"Hyphenated", "night-owl-42", ""},
		{"Minimum length", "ink", ""},
		{"Maximum length", strings.Repeat("q", 30), ""},
		{"Too short", "jo", "at least 3"},
		{"Too long", strings.Repeat("q", 31), "must not exceed 30"},
		{"Spaces are not allowed", "ada lovelace", "can only contain"},
		{"Email is not a username", "ada@example.com", "can only contain"},
		{"Leading hyphen", "-editor", "cannot start or end"},
		{"Trailing underscore", "editor_", "cannot start or end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// Signup lowercases and trims the address before validating it.
func TestValidateEmail(t *testing.T) {
	t.Parallel()
	// 64 local + "@" + 185 + ".com" = 254
	longest := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Fixture author", "editor@inkwell.local", false},
		{"Plus addressing", "writer+drafts@example.com", false},
		{"Subdomain", "reader@mail.blog.example.co", false},
		{"Longest allowed", longest, false},
		{"Too long", "a" + longest, true},
		{"No at sign", "editor.inkwell.local", true},
		{"No domain", "editor@", true},
		{"Double at", "editor@@inkwell.local", true},
		{"Untrimmed space", " editor@inkwell.local", true},
		{"Trailing dot", "editor@inkwell.local.", true},
		{"Single letter TLD", "editor@inkwell.l", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
