package assistant

import (
	"fmt"
	"strings"
)

// defaultDocumentName stands in for a document whose name is unknown.
const defaultDocumentName = "uploaded document"

// formatInstruction prefixes every chat prompt sent to the model.
const formatInstruction = "Please provide your response in a clear format. " +
	"Only use markdown when it's necessary for better clarity, such as for code snippets, tables, or lists. " +
	"For example, if you include code, please format it within code blocks. " +
	"Similarly, use tables for structured data when appropriate. Here's the request: "

// chatPrompt wraps the user's prompt with the formatting instruction.
func chatPrompt(prompt string) string {
	return formatInstruction + prompt
}

// chunkContextPrompt introduces retrieved chunks of a named document.
func chunkContextPrompt(documentName, context string) string {
	if documentName == "" {
		documentName = defaultDocumentName
	}
	return fmt.Sprintf("You are answering questions about the document \"%s\". "+
		"Here are the most relevant sections from the document to help you provide an accurate response:\n\n%s",
		documentName, context)
}

// fullTextContextPrompt introduces the full text of a document.
func fullTextContextPrompt(text string) string {
	return "Context from the document:\n" + text
}

// svgPrompt asks for a single self-contained SVG of subject.
func svgPrompt(subject string) string {
	return fmt.Sprintf(`Generate a detailed SVG image of %s with realistic proportions and accurate details. The image should:

1. Use precise vector paths to capture the natural contours and shapes
2. Incorporate appropriate lighting and shading through gradient fills to create depth
3. Maintain accurate proportions and scale relationships between all elements
4. Use a color palette that reflects natural/realistic tones
5. Include fine details that enhance realism
6. Be optimized for web display with clean, efficient SVG code
7. Have a viewBox dimension of "0 0 800 600"
8. Use appropriate grouping (<g>) elements to organize related components

Please provide ONLY the complete SVG code wrapped in <svg> tags with all necessary attributes and ensure all paths are properly closed. The final image should be visually accurate and realistic.`, subject)
}

// codeSearchPrompt asks for a code solution in language.
func codeSearchPrompt(language, query string) string {
	return fmt.Sprintf(`Act as a senior developer. I need help with code in %s.
Query: %s

Please provide:
1. A detailed, production-ready code solution
2. Brief explanation of how the code works
3. Best practices and considerations
4. Example usage if applicable

Return the response in markdown format with proper code blocks.`, language, query)
}

// docSearchPrompt asks for documentation-style explanation of query.
func docSearchPrompt(query string) string {
	return fmt.Sprintf(`Act as a technical documentation expert. I need information about:
%s

Please provide:
1. Detailed explanation
2. Key concepts
3. Common use cases
4. Best practices
5. Examples if applicable

Return the response in well-formatted markdown.`, query)
}

// ocrRefinePrompt asks the model to clean up OCR output.
func ocrRefinePrompt(text string) string {
	var b strings.Builder
	b.WriteString(`I have extracted text from an image using OCR. Please:
1. Fix any obvious OCR errors
2. Correct spelling and grammar
3. Properly format paragraphs and spacing
4. Maintain the original meaning and structure
5. Ensure the text is clear and easy to read
6. Remove any unnecessary information
7. Make the text more engaging and interesting
8. Keep the text relevant to the image content
9. Read the text carefully if it is type of card return it like card in markdown
10. Read the text carefully if it is type of resume return it like resume in markdown

Original text:
`)
	b.WriteString(text)
	b.WriteString("\n\nEnhanced version:")
	return b.String()
}
