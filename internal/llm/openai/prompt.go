package openai

import (
	"fmt"
	"strings"

	"foodsafe-backend/internal/llm"
	"foodsafe-backend/internal/shared/telemetry"
)

// Message represents an OpenAI chat message.
type Message struct {
	Role    string
	Content string
}

const (
	systemPrompt        = "You are a food safety classification engine. Respond with JSON only. Output must match the schema exactly."
	systemPromptFixJSON = "You are a JSON repair tool. Return only valid JSON that matches the schema exactly."
)

// BuildPrompt creates the chat messages for a classification request.
func BuildPrompt(input llm.ClassifyInput, model string) []Message {
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "developer", Content: resolvePromptTemplate(input.PromptVersion, model)},
		{Role: "user", Content: buildUserPrompt(input)},
	}
}

func buildFixPrompt(input llm.ClassifyInput, model string, raw []byte) []Message {
	return []Message{
		{Role: "system", Content: systemPromptFixJSON},
		{Role: "developer", Content: resolvePromptTemplate(input.PromptVersion, model)},
		{Role: "user", Content: fmt.Sprintf("Fix this JSON to match the schema exactly. Output JSON only:\n%s", string(raw))},
	}
}

func resolvePromptTemplate(promptVersion, model string) string {
	version := strings.TrimSpace(promptVersion)
	if version == "" {
		version = llm.DefaultPromptVersion
	}
	template, ok := llm.PromptTemplate(version)
	if !ok {
		telemetry.Warn("llm.prompt.unknown_version", map[string]any{"prompt_version": version})
		version = llm.DefaultPromptVersion
	}
	replacer := strings.NewReplacer(
		"{{PROMPT_VERSION}}", version,
		"{{MODEL}}", model,
	)
	return replacer.Replace(template)
}

func buildUserPrompt(input llm.ClassifyInput) string {
	return fmt.Sprintf("Ingredients:\n%s\n\nAllergies:\n%s\n\nMedications:\n%s",
		bulletList(input.Ingredients),
		bulletList(input.Allergies),
		bulletList(input.Medications),
	)
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- none"
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}
