package service

import (
	"fmt"
	"strings"

	"github.com/markwise/markwise-api/internal/dto"
	"github.com/markwise/markwise-api/pkg/genai"
)

// clampScore bounds a model-reported score to [0, max] so downstream
// aggregation (percentages, dashboards) never sees out-of-range values.
func clampScore(score, max float64) float64 {
	if score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return score
}

func textFallback(err error) dto.SingleTextResult {
	return dto.SingleTextResult{
		Score:        0,
		Improvements: []string{"Evaluation failed: " + err.Error()},
		Feedback:     "Unable to grade this answer at the moment. Please try again later.",
	}
}

func batchFallback(questions []genai.Question, err error) []dto.BatchItemResult {
	results := make([]dto.BatchItemResult, 0, len(questions))
	for _, q := range questions {
		results = append(results, dto.BatchItemResult{
			QuestionID:   q.ID,
			Score:        0,
			Improvements: []string{"Evaluation failed: " + err.Error()},
			Feedback:     "Unable to grade this answer at the moment. Please try again later.",
		})
	}
	return results
}

func imageFallback(maxMarks int, err error) dto.SingleImageResult {
	return dto.SingleImageResult{
		ExtractedText: "",
		Score:         0,
		MaxMarks:      float64(maxMarks),
		Improvements:  []string{"Evaluation failed: " + err.Error()},
		Feedback:      "The system could not process the image. Please try again with a clearer photo.",
	}
}

func sheetFallback(questions []genai.Question, err error) dto.FullSheetResult {
	result := dto.FullSheetResult{
		Results:         make([]dto.SheetItemResult, 0, len(questions)),
		OverallFeedback: "Failed to process the answer sheet. Please try again with a clearer photo.",
	}
	for i, q := range questions {
		result.Results = append(result.Results, dto.SheetItemResult{
			QuestionID:     q.ID,
			QuestionNumber: i + 1,
			MaxMarks:       float64(q.Marks),
			Improvements:   []string{"Evaluation failed: " + err.Error()},
			Feedback:       "Could not process the image.",
		})
		result.TotalMaxMarks += float64(q.Marks)
	}
	return result
}

// joinBatchResults joins the model's entries to the requested questions so
// every question id appears exactly once, in input order. Entries the model
// invented are dropped; unanswered questions are forced to zero.
func joinBatchResults(questions []genai.Question, answers map[string]string, items []genai.BatchItemPayload) []dto.BatchItemResult {
	byID := make(map[string]genai.BatchItemPayload, len(items))
	for _, item := range items {
		if _, seen := byID[item.QuestionID]; !seen {
			byID[item.QuestionID] = item
		}
	}

	results := make([]dto.BatchItemResult, 0, len(questions))
	for _, q := range questions {
		answered := strings.TrimSpace(answers[q.ID]) != ""
		if !answered {
			results = append(results, dto.BatchItemResult{
				QuestionID:   q.ID,
				Score:        0,
				Improvements: []string{"Attempt the question to receive feedback."},
				Feedback:     "No answer was provided for this question.",
			})
			continue
		}

		item, ok := byID[q.ID]
		if !ok {
			results = append(results, dto.BatchItemResult{
				QuestionID:   q.ID,
				Score:        0,
				Improvements: []string{},
				Feedback:     "The evaluation response did not include this question.",
			})
			continue
		}

		improvements := item.Improvements
		if improvements == nil {
			improvements = []string{}
		}
		results = append(results, dto.BatchItemResult{
			QuestionID:   q.ID,
			Score:        clampScore(item.Score, float64(q.Marks)),
			Improvements: improvements,
			Feedback:     item.Feedback,
		})
	}
	return results
}

// joinSheetResults rebuilds the full-sheet result around the requested
// question list: one entry per question in input order, clamped per-question
// marks, and totals recomputed from the entries rather than trusted from the
// model.
func joinSheetResults(questions []genai.Question, sheet genai.SheetPayload) dto.FullSheetResult {
	byID := make(map[string]genai.SheetItemPayload, len(sheet.Results))
	for _, item := range sheet.Results {
		if _, seen := byID[item.QuestionID]; !seen {
			byID[item.QuestionID] = item
		}
	}

	result := dto.FullSheetResult{
		ExtractedText:   sheet.ExtractedText,
		Results:         make([]dto.SheetItemResult, 0, len(questions)),
		OverallFeedback: sheet.OverallFeedback,
	}

	for i, q := range questions {
		marks := float64(q.Marks)
		entry := dto.SheetItemResult{
			QuestionID:     q.ID,
			QuestionNumber: i + 1,
			MaxMarks:       marks,
			Improvements:   []string{},
		}

		if item, ok := byID[q.ID]; ok {
			entry.ExtractedAnswer = item.ExtractedAnswer
			entry.IsRelevant = item.IsRelevant
			entry.Score = clampScore(item.Score, marks)
			entry.Feedback = item.Feedback
			if item.Improvements != nil {
				entry.Improvements = item.Improvements
			}
		} else {
			entry.ExtractedAnswer = "Not attempted"
			entry.Feedback = fmt.Sprintf("No answer for question %d was found on the sheet.", i+1)
		}

		result.Results = append(result.Results, entry)
		result.TotalScore += entry.Score
		result.TotalMaxMarks += marks
	}

	return result
}
