package ldapauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSensitiveData(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "***"},
		{"bob", "***"},
		{"anna", "***"},
		{"alice", "a***e"},
		{"alice1", "al**e1"},
		{"administrator", "ad*********or"},
		{"joséph", "jo**ph"},
		{"üöäßé", "ü***é"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskSensitiveData(tt.input))
		})
	}
}
