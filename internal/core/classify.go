package core

import (
	"strings"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// classificationRules are checked in order; the first rule with a keyword
// contained in the lowercased content wins.
var classificationRules = []struct {
	label    models.Classification
	keywords []string
}{
	{models.ClassQuestion, []string{"?", "what", "how", "why", "when", "where"}},
	{models.ClassAnalysis, []string{"analyze", "review", "examine"}},
	{models.ClassWriting, []string{"write", "create", "generate", "draft"}},
	{models.ClassCode, []string{"code", "function", "script", "program"}},
	{models.ClassCalculation, []string{"calculate", "compute", "solve"}},
}

// Classify assigns an intent label to document content. It is a pure
// function of its input.
func Classify(content string) models.Classification {
	lower := strings.ToLower(content)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}
	return models.ClassGeneral
}
