package summary

import (
	"fmt"
	"strings"
)

// BatchSystemPrompt frames the per-batch summary call.
const BatchSystemPrompt = `You are an expert conversation analyst who extracts the key information and user behaviour patterns from chat transcripts.`

// TrendSystemPrompt frames the overall trend analysis call.
const TrendSystemPrompt = `You are an expert behaviour analyst who extracts user behaviour patterns and trends from large amounts of data.`

const batchInstructions = `Write a concise summary (2-3 sentences) for each conversation, focusing on:
1. The main topic and purpose of the conversation
2. The user's main needs and questions
3. The kind of help the AI provided (programming, writing, question answering, etc.)
4. Notable characteristics (code, images, tool use, etc.)`

const batchFormat = `Use the following format for each conversation:
[Conversation 1]
Summary: [2-3 sentence summary]

[Conversation 2]
Summary: [2-3 sentence summary]

...and so on.

Keep each summary short but informative, so it reflects the user's AI usage habits and preferences.`

const trendInstructions = `Analyse the dimensions below in depth:

1. **Usage patterns and preferences**
   - What the user most often uses the AI for (programming, writing, question answering, learning, etc.)
   - The distribution of conversation types
   - Usage habits (deep discussion vs quick Q&A, single topic vs many topics)

2. **Technical leaning**
   - How often code-related features are used
   - Whether image analysis is used
   - Tool usage
   - How far the user explores AI features

3. **Conversation characteristics**
   - Average depth and complexity
   - How the user asks questions (detailed vs brief, concrete vs abstract)
   - Interaction style with the AI (directive, collaborative, Q&A)

4. **Trends over time (where possible)**
   - Whether usage habits changed
   - Whether topic preferences evolved

5. **Personal profile**
   - Summarise the user's AI usage profile in 3-5 sentences
   - Describe the most prominent usage traits

Give each dimension its own clearly structured section and finish with an overall user profile.`

var separator = strings.Repeat("=", 80)

// batchPrompt builds the user prompt for one batch of conversation digests.
func batchPrompt(digests []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Below are %d conversations between a user and an AI assistant.\n\n", len(digests))
	sb.WriteString(batchInstructions)
	sb.WriteString("\n\nConversations:\n\n")
	sb.WriteString(separator)
	for i, d := range digests {
		fmt.Fprintf(&sb, "\n\n[Conversation %d]\n%s", i+1, d)
	}
	sb.WriteString("\n\n")
	sb.WriteString(batchFormat)
	return sb.String()
}

// trendPrompt builds the user prompt for the overall trend analysis.
func trendPrompt(summaries []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on the following %d batch summaries, analyse this user's AI usage habits and conversation trends.\n\nSummaries:\n", len(summaries))
	for i, s := range summaries {
		fmt.Fprintf(&sb, "\n[Summary %d]\n%s\n", i+1, s)
	}
	sb.WriteString("\n")
	sb.WriteString(trendInstructions)
	return sb.String()
}
