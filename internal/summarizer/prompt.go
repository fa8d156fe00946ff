package summarizer

import (
	"fmt"
	"strings"
)

// SystemInstruction frames the model as a JSON extractor.
const SystemInstruction = "You are a helpful assistant that extracts structured information from chat conversations. Always respond with valid JSON only."

const promptTemplate = `Analyze this chat conversation and extract key information in JSON format.

Chat Transcript:
%s

Extract and return a JSON object with these fields:
- intent: What is the client's main purpose/goal? (string)
- preferences: Any preferences mentioned (list of strings)
- key_points: Important details or requirements (list of strings)
- sentiment: Overall sentiment (positive/neutral/negative)
- urgency: How urgent is their need? (low/medium/high)
- summary: Brief 1-2 sentence summary

Return ONLY valid JSON, no other text.`

// Line is one message of a transcript.
type Line struct {
	SenderType string
	Message    string
}

// BuildTranscript renders lines as "Client: ..." / "Bot: ...", one per line.
// Any sender other than "client" is rendered as the bot.
func BuildTranscript(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		if l.SenderType == "client" {
			b.WriteString("Client: ")
		} else {
			b.WriteString("Bot: ")
		}
		b.WriteString(l.Message)
	}
	return b.String()
}

// BuildPrompt embeds a rendered transcript in the extraction prompt.
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(promptTemplate, transcript)
}
