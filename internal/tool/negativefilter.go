package tool

import (
	"context"

	"deep-search-wiser/internal/filter"
)

// NegativeFilterName is the filter tool's name.
const NegativeFilterName = "NegativeFilter"

type reportFilter interface {
	Filter(ctx context.Context, raw string) (filter.Report, error)
}

// NegativeFilterTool flags negative items in search output.
type NegativeFilterTool struct {
	filter reportFilter
}

func NewNegativeFilterTool(f reportFilter) *NegativeFilterTool {
	return &NegativeFilterTool{filter: f}
}

func (t *NegativeFilterTool) Name() string { return NegativeFilterName }
func (t *NegativeFilterTool) Description() string {
	return "Arama sonuçlarından negatif haberleri filtreler ve JSON formatında döndürür. Girdi: arama aracının JSON çıktısı."
}

func (t *NegativeFilterTool) Execute(ctx context.Context, input string) (*Result, error) {
	report, err := t.filter.Filter(ctx, cleanInput(input))
	if err != nil {
		return errorResult(NegativeFilterName, err), nil
	}
	return &Result{Output: report.String()}, nil
}
