package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Open WhatsApp", "open whatsapp"},
		{"strips punctuation", "what's the time?!", "whats the time"},
		{"collapses whitespace", "  send \t a   message \n", "send a message"},
		{"keeps digits", "call 911 now", "call 911 now"},
		{"empty input", "", ""},
		{"only punctuation", "?!...,;", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestSimilarity(t *testing.T) {
	t.Run("identical strings score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("open the calendar app", "open the calendar app"))
	})

	t.Run("identical after normalization score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("Open The Calendar!", "open the calendar"))
	})

	t.Run("disjoint vocabularies score 0", func(t *testing.T) {
		assert.Equal(t, 0.0, Similarity("play some music", "send an email"))
	})

	t.Run("empty side scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, Similarity("", "open maps"))
		assert.Equal(t, 0.0, Similarity("open maps", ""))
		assert.Equal(t, 0.0, Similarity("", ""))
	})

	t.Run("known partial overlap", func(t *testing.T) {
		// 4 tokens each, 3 shared: |intersection|=3, |union|=5 -> 0.6
		assert.InDelta(t, 0.6, Similarity("send message to john", "send message to jane"), 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		a, b := "remind me to buy milk", "buy milk tomorrow"
		assert.Equal(t, Similarity(a, b), Similarity(b, a))
	})
}

func TestLCSRatio(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "whatsapp", "whatsapp", 1.0},
		{"empty side", "", "maps", 0.0},
		{"no overlap", "abc", "xyz", 0.0},
		{"subsequence", "wsap", "whatsapp", 0.5},
		{"prefix", "cal", "calculator", 0.3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, LCSRatio(tc.a, tc.b), 1e-9)
		})
	}

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, LCSRatio("chrome", "chromium"), LCSRatio("chromium", "chrome"))
	})
}
