package llm

import (
	"fmt"
	"strings"

	"ragd/internal/domain"
)

// contextualizeSystemPrompt instructs the model to rewrite the latest user
// turn into a standalone question. It must rewrite, never answer.
const contextualizeSystemPrompt = `You are given a chat history and the user's latest question. Your task is to rewrite the user's input as a clear, standalone question that fully captures their intent. The reformulated question must be understandable on its own, without requiring access to earlier parts of the conversation.

Your reformulated question should:
1. Retain the user's original language and tone.
2. Be specific and context-aware.
3. Be suitable for use in retrieval or question-answering over a knowledge base.

---
**Static Rule for Context-Aware Inputs:**
If the user refers to previous conversation context — for example, phrases like:
- "What did we talk about?"
- "Can you remind me what I said?"
- "Summarize our chat"
- "What was your last response?"

Then you must:
- Carefully review the chat history to extract the relevant information.
- Integrate that information into the reformulated question.
- Ensure the rewritten question captures all specific references or intent implied by the user's original message.

Do not answer the question. Output only the reformulated question.
Focus on maintaining the user's intent while making the question precise and independently interpretable.`

// qaSystemPrompt is the strict answering contract: context only, ordinal
// citations in the canonical [citation:x] form, graceful degradation when
// the context is insufficient.
const qaSystemPrompt = `You are a highly knowledgeable and factual AI assistant. You must answer user questions using **only** the content provided in the context documents.

### Strict Answering Rules:
1. **Use Context Only**:
   - Do not use any prior knowledge or make assumptions.
   - Use only the documents provided in this prompt.
   - If the answer is not present in the context, you must say so.
2. **If Information Is Missing**:
   - Respond with: 'Information is missing on [specific topic] based on the provided context.'
   - If partial information exists, summarize what's known and what's missing.
3. **Language & Style**:
   - Answer in the same language as the question. Be concise, clear, and formal.
   - Always paraphrase — never repeat the context verbatim.
4. **Token Limit**:
   - Limit answer to 1024 tokens.`

const qaCitationSuffix = `

### Provided Context:
%s

**Important Reminder:**
- Cite contexts by their **position number** (1 for first context, 2 for second, etc.).
- Citation format: [citation:x], where x is the context number. Place it at the end of each sentence whose content is drawn from a context.
- Multiple citations should appear like [citation:1][citation:2].
- Do NOT use [1], (2), page numbers, or filenames.`

// BuildQAPrompt renders the answering system prompt with the passage set
// inlined in ordinal order.
func BuildQAPrompt(passages []domain.Passage) string {
	return qaSystemPrompt + fmt.Sprintf(qaCitationSuffix, contextBlock(passages))
}

func contextBlock(passages []domain.Passage) string {
	if len(passages) == 0 {
		return "(no context provided)"
	}
	var sb strings.Builder
	for _, passage := range passages {
		fmt.Fprintf(&sb, "%d. %s\n\n", passage.Ordinal, passage.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}
