package agent

import "fmt"

const systemPrompt = `You are Sonia AI, a helpful document analysis assistant.

Format your responses clearly and professionally:
- Use line breaks between paragraphs for better readability
- Use bullet points (-) for lists of items
- Use numbered lists (1., 2., 3.) for steps or sequences
- Use **bold text** for key terms and important points
- Keep paragraphs concise (2-3 sentences maximum)
- Always be helpful, accurate, and conversational
- If you can't find the answer in the context, say so clearly
- When referencing information, mention which document it came from when possible`

// BuildPrompt embeds the retrieved context and the question into the user
// message sent to the completion service.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf(`Based on the following document excerpts, please answer the user's question with clear, well-structured formatting.

Context from documents:
%s
User Question: %s
Instructions for your response:
- Provide a clear, well-structured answer
- Use bullet points (with -) when listing items
- Use numbered lists (1., 2., 3.) for steps or sequences
- Break up long content into short paragraphs (2-3 sentences max)
- Use **bold text** for key terms or important points
- If citing specific information, mention the source document
- Be conversational but professional
- Use line breaks between different points or sections

Answer:`, context, question)
}
