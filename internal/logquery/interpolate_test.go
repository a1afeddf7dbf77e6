package logquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	ctx := map[string]string{"user": "admin", "ip": "10.0.0.1", "n": "3"}

	tests := []struct {
		in, want string
	}{
		{"Logged in", "Logged in"},
		{"User {user} logged in", "User admin logged in"},
		{"{user} from {ip}", "admin from 10.0.0.1"},
		{"{n}{n}", "33"},
		{"Unknown {missing} stays", "Unknown {missing} stays"},
		{"Open {brace", "Open {brace"},
		{"Nested {{user}}", "Nested {admin}"},
		{"Spaced { user }", "Spaced { user }"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Interpolate(tt.in, ctx), tt.in)
	}
}

func TestInterpolate_NoContext(t *testing.T) {
	assert.Equal(t, "User {user}", Interpolate("User {user}", nil))
}
