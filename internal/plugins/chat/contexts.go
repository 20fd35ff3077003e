// Package chat implements the assistant conversation plugin: the context
// registry, the conversation state machine, and the canned response
// generator behind it.
package chat

import "fmt"

// ContextTag identifies one of the assistant's entry points.
type ContextTag string

const (
	// ContextUpload is the prescription analysis flow.
	ContextUpload ContextTag = "upload"

	// ContextMedicineSearch is the medicine information lookup flow.
	ContextMedicineSearch ContextTag = "medicine-search"

	// ContextQuestion is the freeform health question flow.
	ContextQuestion ContextTag = "question"
)

// ContextInfo holds display metadata and canned text for a context.
type ContextInfo struct {
	// ID is the machine-readable tag a conversation is created with.
	ID ContextTag `json:"id"`

	// Title is the human-readable heading (e.g., "Prescription Analysis").
	Title string `json:"title"`

	// Icon is the icon name clients render next to the title.
	Icon string `json:"icon"`

	// Welcome is the assistant message every conversation in this context
	// opens with.
	Welcome string `json:"welcome"`

	// replyTemplate produces the canned assistant response for a prompt.
	// Unexported: clients get replies through the conversation log, never
	// the template itself.
	replyTemplate func(prompt string) string
}

// Registry returns all known contexts. This is the canonical source of
// truth for what assistant entry points exist in the portal.
func Registry() []ContextInfo {
	return []ContextInfo{
		{
			ID:            ContextUpload,
			Title:         "Prescription Analysis",
			Icon:          "upload",
			Welcome:       "Hello! I'm your MediLens AI assistant. I can help you analyze prescriptions, medical documents, or any health-related content. You can upload files, share URLs, or simply describe what you'd like to know about your prescription.",
			replyTemplate: uploadReply,
		},
		{
			ID:            ContextMedicineSearch,
			Title:         "Medicine Information",
			Icon:          "search",
			Welcome:       "Hi there! I'm here to help you find detailed information about medicines. Just tell me the name of any medication, and I'll provide you with usage instructions, dosage, side effects, interactions, and more from trusted medical databases.",
			replyTemplate: medicineSearchReply,
		},
		{
			ID:            ContextQuestion,
			Title:         "Health Questions",
			Icon:          "message-square",
			Welcome:       "Welcome! I'm your AI health assistant. Feel free to ask me any questions about medications, health conditions, symptoms, or general medical information. I'm here to provide you with accurate, helpful answers.",
			replyTemplate: questionReply,
		},
	}
}

// Find returns the context info for a given tag, or nil if not found.
func Find(tag ContextTag) *ContextInfo {
	for _, c := range Registry() {
		if c.ID == tag {
			return &c
		}
	}
	return nil
}

func uploadReply(prompt string) string {
	return fmt.Sprintf(`Based on your prescription query about "%s", I can help you understand the medications prescribed, their dosages, potential side effects, and usage instructions. For a complete analysis, please upload your prescription document or share the specific medications you'd like to know about.

**Key Points:**
• Always follow your doctor's prescribed dosage
• Be aware of potential drug interactions
• Monitor for any unusual side effects
• Take medications as directed (with/without food, timing, etc.)

Would you like me to analyze specific medications or do you have questions about any particular aspect of your prescription?`, prompt)
}

func medicineSearchReply(prompt string) string {
	return fmt.Sprintf(`Here's what I found about "%s":

**Medicine Information:**
• **Generic Name:** [Based on your search]
• **Usage:** Treatment of various conditions as prescribed
• **Dosage:** Follow your doctor's prescription
• **Side Effects:** May include common and rare side effects
• **Interactions:** Can interact with certain medications
• **Precautions:** Important safety information

**Important:** This information is for educational purposes. Always consult your healthcare provider for personalized medical advice.

Would you like more specific details about dosage, side effects, or interactions?`, prompt)
}

func questionReply(prompt string) string {
	return fmt.Sprintf(`Thank you for your question about "%s". Based on current medical knowledge:

**Response:**
This is a comprehensive answer addressing your health question. I provide information based on trusted medical sources and current healthcare guidelines.

**Key Recommendations:**
• Consult with your healthcare provider for personalized advice
• Follow prescribed treatments and medications
• Monitor your symptoms and report changes
• Maintain regular check-ups

**Disclaimer:** This information is for educational purposes only and should not replace professional medical advice.

Do you have any follow-up questions or need clarification on any specific aspect?`, prompt)
}
