// =============================================================================
// AIMsi to CAPSS Converter - Brand Prompts
// =============================================================================

package llm

import "fmt"

func groqPrompt(description string) string {
	return fmt.Sprintf(`Extract ONLY the brand name from this musical instrument description.
Return just the brand name, nothing else. If no brand found, return UNKNOWN.

Description: %s`, description)
}

// Gemini tends to answer in mixed case unless told otherwise.
func geminiPrompt(description string) string {
	return fmt.Sprintf(`Extract ONLY the brand name from this musical instrument description.
Return just the brand name in uppercase, nothing else. If no brand found, return UNKNOWN.

Description: %s`, description)
}
