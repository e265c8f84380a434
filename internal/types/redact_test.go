package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactAddress(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"john@gmail.com", "j***@gmail.com"},
		{"@domain.com", "***@domain.com"},
		{"user@sub@domain.com", "u***@sub@domain.com"},
		{"+15550001234", "+***34"},
		{"5550001234", "***34"},
		{"12", "***"},
		{"https://hooks.example.com/services/T000/B000/XXXX?token=abc", "https://hooks.example.com/***"},
		{"http://", "***"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactAddress(tt.input))
		})
	}
}

func TestRedactEmail_NoAtSign(t *testing.T) {
	assert.Equal(t, "***", RedactEmail("invalidemail"))
}
