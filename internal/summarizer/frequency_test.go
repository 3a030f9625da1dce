package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_KeepsOriginalOrder(t *testing.T) {
	text := "Refunds are issued for missing items. The weather is nice. Refunds for missing items take seven days. Cats sleep."
	got := NewFrequencySummarizer().Summarize(text, 2)
	assert.Equal(t, "Refunds are issued for missing items. Refunds for missing items take seven days.", got)
}

func TestSummarize_FewerSentencesThanMax(t *testing.T) {
	got := NewFrequencySummarizer().Summarize("Only one\nsentence here.", 5)
	assert.Equal(t, "Only one sentence here.", got)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, NewFrequencySummarizer().Summarize("   ", 3))
}

func TestSummarize_DefaultMax(t *testing.T) {
	text := strings.Repeat("Delivery takes time. ", 6)
	got := NewFrequencySummarizer().Summarize(text, 0)
	assert.Equal(t, 3, strings.Count(got, "Delivery"))
}
