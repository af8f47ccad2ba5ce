package llm

// DocumentTypes lists the tags the analysis prompt allows for document_type.
var DocumentTypes = []string{"invoice", "resume", "cv", "report", "letter", "other"}

const documentSystemPrompt = `You are a Document Analysis assistant. Given the text of a document, respond with a single JSON object with exactly these keys:
- "summary": a concise summary of the document (max 200 words)
- "document_type": one of ["invoice","resume","cv","report","letter","other"]
- "attributes": a JSON object with the key facts found in the document (names, dates, amounts, identifiers, etc.)
Return only valid JSON. Do not wrap it in markdown or add commentary.`

const documentUserPrefix = "Analyze the following document text:\n\n"

// DocumentAnalysisMessages builds the chat turns for analyzing text.
func DocumentAnalysisMessages(text string) []Message {
	return []Message{
		{Role: "system", Content: documentSystemPrompt},
		{Role: "user", Content: documentUserPrefix + text},
	}
}
