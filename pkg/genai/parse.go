package genai

import (
	"encoding/json"
	"strings"
)

// Models routinely wrap their JSON in markdown fences or prepend prose, so
// every completion goes through StripCodeFences before parsing. Malformed
// output is the dominant failure mode in production, so the Parse* functions
// never fail. They degrade into a zero-score fallback that keeps the
// offending text (truncated) for diagnosis.

const diagnosticLimit = 200

// ScorePayload is the model's answer for single-answer grading, shared by
// the text and image modes.
type ScorePayload struct {
	ExtractedText string   `json:"extractedText,omitempty"`
	IsRelevant    *bool    `json:"isRelevant,omitempty"`
	Score         float64  `json:"score"`
	MaxMarks      float64  `json:"maxMarks,omitempty"`
	Improvements  []string `json:"improvements"`
	Feedback      string   `json:"feedback"`
}

// BatchItemPayload is one entry of the model's batch grading array.
type BatchItemPayload struct {
	QuestionID   string   `json:"questionId"`
	Score        float64  `json:"score"`
	Improvements []string `json:"improvements"`
	Feedback     string   `json:"feedback"`
}

// SheetItemPayload is one graded answer inside a full-sheet completion.
type SheetItemPayload struct {
	QuestionID      string   `json:"questionId"`
	QuestionNumber  int      `json:"questionNumber"`
	ExtractedAnswer string   `json:"extractedAnswer"`
	IsRelevant      bool     `json:"isRelevant"`
	Score           float64  `json:"score"`
	MaxMarks        float64  `json:"maxMarks"`
	Improvements    []string `json:"improvements"`
	Feedback        string   `json:"feedback"`
}

// SheetPayload is the model's answer for full-sheet grading.
type SheetPayload struct {
	ExtractedText   string             `json:"extractedText"`
	Results         []SheetItemPayload `json:"results"`
	TotalScore      float64            `json:"totalScore"`
	TotalMaxMarks   float64            `json:"totalMaxMarks"`
	OverallFeedback string             `json:"overallFeedback"`
}

// StripCodeFences removes markdown code-fence decoration from a completion.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseSingle parses a single-answer completion. On malformed JSON or a
// missing score field it returns the zero-score fallback instead of an error.
func ParseSingle(raw string) ScorePayload {
	clean := StripCodeFences(raw)

	var wire struct {
		ExtractedText string   `json:"extractedText"`
		IsRelevant    *bool    `json:"isRelevant"`
		Score         *float64 `json:"score"`
		MaxMarks      float64  `json:"maxMarks"`
		Improvements  []string `json:"improvements"`
		Feedback      string   `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(clean), &wire); err != nil || wire.Score == nil {
		return ScorePayload{
			Score:        0,
			Improvements: []string{"Model returned non-JSON text", diagnostic(clean)},
			Feedback:     "AI evaluation could not be parsed.",
		}
	}

	improvements := wire.Improvements
	if improvements == nil {
		improvements = []string{}
	}
	feedback := wire.Feedback
	if feedback == "" {
		feedback = "No feedback"
	}

	return ScorePayload{
		ExtractedText: wire.ExtractedText,
		IsRelevant:    wire.IsRelevant,
		Score:         *wire.Score,
		MaxMarks:      wire.MaxMarks,
		Improvements:  improvements,
		Feedback:      feedback,
	}
}

// ParseBatch parses a batch completion. The fallback covers every requested
// question so the caller still receives one entry per question.
func ParseBatch(raw string, questions []Question) []BatchItemPayload {
	clean := StripCodeFences(raw)

	var items []BatchItemPayload
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		fallback := make([]BatchItemPayload, 0, len(questions))
		for _, q := range questions {
			fallback = append(fallback, BatchItemPayload{
				QuestionID:   q.ID,
				Score:        0,
				Improvements: []string{"Model returned non-JSON text", diagnostic(clean)},
				Feedback:     "AI evaluation could not be parsed.",
			})
		}
		return fallback
	}

	for i := range items {
		if items[i].Improvements == nil {
			items[i].Improvements = []string{}
		}
	}
	return items
}

// ParseSheet parses a full-sheet completion. The fallback synthesizes a
// zero-score entry per question, mirroring what the client renders when the
// whole evaluation fails.
func ParseSheet(raw string, questions []Question) SheetPayload {
	clean := StripCodeFences(raw)

	var sheet SheetPayload
	if err := json.Unmarshal([]byte(clean), &sheet); err != nil || sheet.Results == nil {
		fallback := SheetPayload{
			OverallFeedback: "Failed to process the answer sheet. Please try again with a clearer photo.",
		}
		for i, q := range questions {
			marks := q.Marks
			if marks <= 0 {
				marks = 5
			}
			fallback.Results = append(fallback.Results, SheetItemPayload{
				QuestionID:     q.ID,
				QuestionNumber: i + 1,
				Score:          0,
				MaxMarks:       float64(marks),
				Improvements:   []string{"Model returned non-JSON text", diagnostic(clean)},
				Feedback:       "Could not process the image.",
			})
		}
		return fallback
	}

	for i := range sheet.Results {
		if sheet.Results[i].Improvements == nil {
			sheet.Results[i].Improvements = []string{}
		}
	}
	return sheet
}

func diagnostic(clean string) string {
	return truncate(clean, diagnosticLimit)
}
