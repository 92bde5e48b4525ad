package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/prompts"
)

// basic safety limits to avoid pathological model outputs
const (
	maxContentLen = 16 * 1024 // 16KB
	maxTupleLen   = 1024
	maxErrSnippet = 120
)

// ParseClassification extracts the classification tuple from the classifier
// model's reply. Expected wire format:
//
//	(classification<||>intent<||>complexity<||>chart<||>sql)##<|COMPLETE|>
func ParseClassification(content string) (model.Classification, error) {
	var zero model.Classification

	if content == "" {
		return zero, fmt.Errorf("empty classifier output")
	}
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}
	// honor completion delimiter if present
	if idx := strings.Index(content, prompts.CompleteDelim); idx >= 0 {
		content = content[:idx]
	}

	for _, rec := range strings.Split(content, prompts.RecordDelim) {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		cls, err := parseTuple(rec)
		if err != nil {
			continue
		}
		return cls, nil
	}
	return zero, fmt.Errorf("no classification tuple in output: %s", safeSnippet(content))
}

func parseTuple(s string) (model.Classification, error) {
	var zero model.Classification

	if len(s) > maxTupleLen {
		return zero, fmt.Errorf("tuple too large")
	}
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return zero, fmt.Errorf("invalid tuple parens")
	}

	parts := strings.Split(s[1:len(s)-1], prompts.TupleDelim)
	if len(parts) != 5 {
		return zero, fmt.Errorf("invalid tuple arity %d", len(parts))
	}
	if strings.TrimSpace(parts[0]) != "classification" {
		return zero, fmt.Errorf("not a classification tuple")
	}

	rawIntent := strings.TrimSpace(parts[1])
	if rawIntent == "" || !utf8.ValidString(rawIntent) {
		return zero, fmt.Errorf("invalid intent field")
	}

	return model.Classification{
		Intent:     model.ParseIntent(rawIntent),
		Complexity: model.ParseComplexity(parts[2]),
		NeedsChart: parseBool(parts[3]),
		NeedsSQL:   parseBool(parts[4]),
	}, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrSnippet {
		s = s[:maxErrSnippet] + "..."
	}
	return s
}
