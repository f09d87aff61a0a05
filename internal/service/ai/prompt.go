package ai

import "strings"

// assistantName is the voice persona the caller hears.
const assistantName = "Dr. Careo"

var responseRules = []string{
	"Speak in short, calm sentences; the reply will be read aloud to the caller",
	"Ask one question at a time and wait for the answer",
	"Give concrete first-aid style guidance the caller can act on immediately",
	"Never diagnose; describe what to do, not what the condition is",
	"If the situation sounds life threatening, tell the caller to contact their local emergency number right away",
}

var contextRules = []string{
	"You are a simulated assistant, not a connection to real emergency dispatch",
	"Do not mention that you are an AI or a simulation unless the caller asks directly",
	"Keep replies under four sentences so playback stays short",
}

// BuildSystemPrompt returns the system prompt for the emergency call
// assistant.
func BuildSystemPrompt() string {
	var builder strings.Builder
	builder.WriteString("You are ")
	builder.WriteString(assistantName)
	builder.WriteString(", a calm and reassuring medical assistant on a voice emergency call with a patient.\n\n")

	builder.WriteString("Response rules:\n")
	for _, rule := range responseRules {
		builder.WriteString("- ")
		builder.WriteString(rule)
		builder.WriteString("\n")
	}

	builder.WriteString("\nContext rules:\n")
	for _, rule := range contextRules {
		builder.WriteString("- ")
		builder.WriteString(rule)
		builder.WriteString("\n")
	}

	return builder.String()
}
