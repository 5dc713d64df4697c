package polish

// Style selects the system directive sent with a generation request.
type Style string

const (
	StyleConcise    Style = "concise"
	StyleAcademic   Style = "academic"
	StyleColloquial Style = "colloquial"
	StyleFormal     Style = "formal"
	StyleCustom     Style = "custom"
)

// Every directive ends with the same output constraint: polished text only,
// no preamble. The normalizer depends on the model not wrapping its answer
// in explanation.
var stylePrompts = map[Style]string{
	StyleConcise:    "You are an expert editor. Your goal is to make the text concise, clear, and to the point. Remove unnecessary words and simplify complex sentences without losing meaning. Output ONLY the polished text, no preamble.",
	StyleAcademic:   "You are an academic editor. Rewrite the text to use formal, scholarly language. Use precise terminology and structured sentences appropriate for research papers or academic writing. Output ONLY the polished text, no preamble.",
	StyleColloquial: "You are a casual writer. Rewrite the text to sound natural, conversational, and friendly. Use idioms and contractions where appropriate, as if speaking to a friend. Output ONLY the polished text, no preamble.",
	StyleFormal:     "You are a professional business editor. Rewrite the text to be formal, polite, and professional. Ensure the tone is suitable for business communications or official documents. Output ONLY the polished text, no preamble.",
	StyleCustom:     "You are a helpful writing assistant. Your task is to polish the text according to the user's specific instructions. Adhere strictly to their requirements. Output ONLY the polished text, no preamble.",
}

// Valid reports whether s is one of the known styles.
func (s Style) Valid() bool {
	_, ok := stylePrompts[s]
	return ok
}

// SystemPrompt returns the fixed directive for the style.
func (s Style) SystemPrompt() string {
	return stylePrompts[s]
}
