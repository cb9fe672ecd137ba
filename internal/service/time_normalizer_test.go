package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTime(t *testing.T) {
	cases := map[string]string{
		"9:5":      "00:00:00",
		"09:05":    "09:05:00",
		"9:05":     "09:05:00",
		"23:59:59": "23:59:59",
		"24:00:00": "00:00:00",
		"":         "00:00:00",
		"   ":      "00:00:00",
		" 5:30 ":   "05:30:00",
		"12:60":    "00:00:00",
		"12:30:60": "00:00:00",
		"12:30:5":  "00:00:00",
		"1:2:3:4":  "00:00:00",
		"ab:cd":    "00:00:00",
		"123:00":   "00:00:00",
		"00:00":    "00:00:00",
		"18:07:09": "18:07:09",
		"-1:00":    "00:00:00",
		"12.30":    "00:00:00",
		"１２:３０":    "00:00:00",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTime(in), "input %q", in)
	}
}

func TestIsCanonicalTime(t *testing.T) {
	assert.True(t, IsCanonicalTime("05:07:00"))
	assert.True(t, IsCanonicalTime("00:00:00"))
	assert.False(t, IsCanonicalTime("5:07:00"))
	assert.False(t, IsCanonicalTime("05:07"))
	assert.False(t, IsCanonicalTime("25:00:00"))
	assert.False(t, IsCanonicalTime(""))
}
