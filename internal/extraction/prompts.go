package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

// SystemPrompt instructs the model to act as an event-listing extractor
// returning strict JSON.
const SystemPrompt = `CRITICAL: You MUST output ONLY valid JSON. Do not include any text before or after the JSON object. Do not wrap it in markdown code blocks.

You extract public event listings from newsletters and websites for a regional community calendar (Innsbruck/Tirol, Austria).

Rules:
- Only include events that are FREE to attend. Skip anything with a ticket price, fee or paid admission.
- Normalize every date to ISO form YYYY-MM-DD. Resolve relative dates ("nächsten Dienstag") against the reference date given in the input.
- Use 24-hour times (HH:MM). If no start time is stated, use "18:00".
- If no city is stated, use "Innsbruck".
- category must be one of: AI, Tech, Startup, Innovation, Business, Education, Other.
- language must be one of: de, en, mixed.
- Keep descriptions short and factual, at most 200 characters.
- Do not invent events. If the content contains no events, return {"events": []}.

Output format:
{"events": [{"title": "...", "date": "YYYY-MM-DD", "time": "HH:MM", "endTime": "", "location": "", "address": "", "city": "", "category": "", "description": "", "registrationUrl": "", "detailUrl": "", "tags": [], "language": ""}]}`

// BuildPrompt composes the user prompt from cleaned content and per-source
// hints. Absent hints fall back to the generic guidance in SystemPrompt.
func BuildPrompt(content, referenceDate string, hints models.ExtractionHints) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Reference date (today): %s\n\n", referenceDate)

	if hints.HTMLPattern != "" {
		fmt.Fprintf(&b, "Hint: event listings on this page appear in/near: %s\n", hints.HTMLPattern)
	}
	if hints.DateFormat != "" {
		fmt.Fprintf(&b, "Hint: this source writes dates as: %s\n", hints.DateFormat)
	}
	if hints.ExtractNotes != "" {
		fmt.Fprintf(&b, "Hint: %s\n", hints.ExtractNotes)
	}
	if hints.HTMLPattern != "" || hints.DateFormat != "" || hints.ExtractNotes != "" {
		b.WriteString("\n")
	}

	b.WriteString("Extract all events from the following content:\n\n")
	b.WriteString(content)

	return b.String()
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// ParseEvents parses the model's completion into candidates. It tolerates
// markdown code fences, a bare JSON array, and the {"events": [...]} object
// wrapping. Any parse failure returns an error; callers fail closed.
func ParseEvents(completion string) ([]models.Candidate, error) {
	jsonStr := strings.TrimSpace(completion)
	if matches := fencedJSONRe.FindStringSubmatch(jsonStr); len(matches) > 1 {
		jsonStr = matches[1]
	}

	if strings.HasPrefix(jsonStr, "[") {
		var events []models.Candidate
		if err := json.Unmarshal([]byte(jsonStr), &events); err != nil {
			return nil, fmt.Errorf("parse bare event array: %w", err)
		}
		return events, nil
	}

	var wrapped struct {
		Events []models.Candidate `json:"events"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &wrapped); err != nil {
		return nil, fmt.Errorf("parse event object: %w\nresponse (first 500 chars): %.500s", err, completion)
	}
	return wrapped.Events, nil
}
