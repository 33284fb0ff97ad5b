package assist

import "fmt"

const beautifyTemplate = `Your task is to "beautify" the following note. Please perform these actions:
1.  **Paraphrase**: Rewrite the entire note content to improve its clarity, flow, and overall readability. Aim for a slightly more polished or professional tone, depending on the context if discernible, otherwise a generally clear and engaging tone.
2.  **Bullet Points**: Extract the key information or actions from the original note and present them as a concise list of bullet points.

Please structure your response clearly with two distinct sections. Use the following Markdown headings:

### Paraphrased Version:
[Your paraphrased text here]

### Key Bullet Points:
[Your bullet points here, e.g., - Point 1\n- Point 2]

---
Original Note Title: %s
Original Note Content:
%s
---
`

// Prompt builds the model prompt for action on a note.
func Prompt(action Action, title, content string) string {
	switch action {
	case Summarize:
		return fmt.Sprintf("Summarize the following note concisely:\n\nTitle: %s\n\nContent:\n%s", title, content)
	case Brainstorm:
		return fmt.Sprintf("Based on the following note, generate 3-5 related ideas, action items, or discussion points:\n\nTitle: %s\n\nContent:\n%s", title, content)
	case Beautify:
		return fmt.Sprintf(beautifyTemplate, title, content)
	}
	return ""
}
