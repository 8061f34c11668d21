package tool

import (
	"context"
)

// SummarizeName is the summarizer tool's name.
const SummarizeName = "SummarizeNegativeNews"

type summarizer interface {
	Summarize(ctx context.Context, input string) (string, error)
}

// SummarizeTool turns NegativeFilter output into readable Turkish text.
type SummarizeTool struct {
	summarizer summarizer
}

func NewSummarizeTool(s summarizer) *SummarizeTool {
	return &SummarizeTool{summarizer: s}
}

func (t *SummarizeTool) Name() string { return SummarizeName }
func (t *SummarizeTool) Description() string {
	return "NegativeFilter tarafından dönen JSON'u özetler, daha okunabilir bir formatta Türkçe dilinde çıktı verir."
}

func (t *SummarizeTool) Execute(ctx context.Context, input string) (*Result, error) {
	out, err := t.summarizer.Summarize(ctx, cleanInput(input))
	if err != nil {
		return errorResult("Summarizer", err), nil
	}
	return &Result{Output: out}, nil
}
