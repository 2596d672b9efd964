package llm

import _ "embed"

// DefaultPromptVersion is used when callers do not pin a version.
const DefaultPromptVersion = "v1"

//go:embed prompts/food_safety_v1.txt
var promptV1 string

// PromptTemplate returns the prompt template text and whether the version was recognized.
func PromptTemplate(version string) (string, bool) {
	switch version {
	case "v1":
		return promptV1, true
	default:
		return promptV1, false
	}
}
