// Package answer generates natural-language answers grounded in transcript text.
package answer

import (
	"context"
	"fmt"
)

// Generator answers a question using only the supplied context.
type Generator interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

// NotInContext is the reply the model is instructed to give when the context
// does not contain the answer.
const NotInContext = "The video does not provide this information."

const systemPrompt = `You are a factual video QA assistant.

Rules:
- Use ONLY the provided context.
- Do NOT use outside knowledge.
- Do NOT guess.
- If the answer is not present, say: "` + NotInContext + `"
- Write the answer as a complete, well-formed sentence.
- Keep wording faithful to the context but make it grammatically clear.`

// BuildPrompt returns the user message carrying the context and the question.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s\n", context, question)
}
