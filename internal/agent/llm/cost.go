package llm

import (
	"github.com/cloudwego/eino/schema"

	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides hardcoded USD pricing per 1M text tokens.
var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// resolvePricing returns pricing for a model, zero for unknown models.
func resolvePricing(modelName string) Pricing {
	if p, ok := defaultPricing[modelName]; ok {
		return p
	}
	return Pricing{}
}

// logUsage emits token usage and cost for one completed model call.
func logUsage(modelName string, out *schema.Message) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	p := resolvePricing(modelName)
	inputCost := p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost := p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0

	logx.Debug().
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inputCost).
		Float64("output_cost_usd", outputCost).
		Float64("total_cost_usd", inputCost+outputCost).
		Msg("LLM usage")
}
