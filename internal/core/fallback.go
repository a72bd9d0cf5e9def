package core

import (
	"fmt"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

var fallbackGuidance = map[models.Classification]string{
	models.ClassQuestion:    "Your question has been received and logged for follow-up.",
	models.ClassAnalysis:    "Your analysis request has been received. Review the source material and note the key findings, risks and recommendations.",
	models.ClassWriting:     "Your writing request has been received. Start from an outline of the main points before drafting.",
	models.ClassCode:        "Your code request has been received. Describe inputs, outputs and edge cases so an implementation can be produced.",
	models.ClassCalculation: "Your calculation request has been received. List the known values and the formula to apply.",
	models.ClassGeneral:     "Your request has been received and processed.",
}

// FallbackResponse is the text written when no generated response is
// available. It depends only on the label.
func FallbackResponse(label models.Classification) string {
	guidance, ok := fallbackGuidance[label]
	if !ok {
		guidance = fallbackGuidance[models.ClassGeneral]
	}
	return fmt.Sprintf("[Simulated response: the text generation service was unavailable]\n\n"+
		"Task type: %s\n\n%s\n\n"+
		"Set GROQ_API_KEY and reprocess the document to receive a generated answer.", label, guidance)
}
