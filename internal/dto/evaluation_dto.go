package dto

import "github.com/markwise/markwise-api/pkg/genai"

// QuestionSpec is one question of a batch or full-sheet evaluation request.
type QuestionSpec struct {
	ID          string `json:"id" validate:"required"`
	Text        string `json:"text" validate:"required"`
	ModelAnswer string `json:"modelAnswer"`
	Marks       int    `json:"marks"`
}

// EvaluateRequest is the body of POST /evaluate. It carries either a single
// typed answer or a batch; a non-empty questions array selects batch mode.
type EvaluateRequest struct {
	Question      string `json:"question"`
	ModelAnswer   string `json:"modelAnswer"`
	StudentAnswer string `json:"studentAnswer"`
	MaxMarks      int    `json:"maxMarks"`

	Questions []QuestionSpec    `json:"questions"`
	Answers   map[string]string `json:"answers"`
}

// IsBatch reports whether the request should be graded in batch mode.
func (r EvaluateRequest) IsBatch() bool { return len(r.Questions) > 0 }

// SingleTextRequest is the validated single-answer form of EvaluateRequest.
type SingleTextRequest struct {
	Question      string `json:"question" validate:"required"`
	ModelAnswer   string `json:"modelAnswer"`
	StudentAnswer string `json:"studentAnswer" validate:"required"`
	MaxMarks      int    `json:"maxMarks"`
}

// BatchTextRequest is the validated batch form of EvaluateRequest.
type BatchTextRequest struct {
	Questions []QuestionSpec    `json:"questions" validate:"required,min=1,dive"`
	Answers   map[string]string `json:"answers"`
}

// ImagePartDTO is one base64-encoded page of a photographed answer.
type ImagePartDTO struct {
	Data     string `json:"data" validate:"required"`
	MimeType string `json:"mimeType"`
}

// OCREvaluateRequest is the body of POST /ocr-evaluate. The legacy single
// image field is still accepted and folded into the images list.
type OCREvaluateRequest struct {
	Mode     string         `json:"mode"`
	Image    string         `json:"image"`
	MimeType string         `json:"mimeType"`
	Images   []ImagePartDTO `json:"images"`

	Question    string         `json:"question"`
	ModelAnswer string         `json:"modelAnswer"`
	MaxMarks    int            `json:"maxMarks"`
	Questions   []QuestionSpec `json:"questions"`
}

// ModeFullSheet selects full-sheet grading on the OCR endpoint; anything
// else, including an absent mode, means single-answer grading.
const ModeFullSheet = "full-sheet"

// ImageList merges the legacy image field with the images array.
func (r OCREvaluateRequest) ImageList() []ImagePartDTO {
	if len(r.Images) > 0 {
		return r.Images
	}
	if r.Image != "" {
		mime := r.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		return []ImagePartDTO{{Data: r.Image, MimeType: mime}}
	}
	return nil
}

// SingleTextResult is the response body for a single typed answer.
type SingleTextResult struct {
	Score        float64  `json:"score"`
	Improvements []string `json:"improvements"`
	Feedback     string   `json:"feedback"`
}

// BatchItemResult is one graded entry of a batch response.
type BatchItemResult struct {
	QuestionID   string   `json:"questionId"`
	Score        float64  `json:"score"`
	Improvements []string `json:"improvements"`
	Feedback     string   `json:"feedback"`
}

// SingleImageResult is the response body for a photographed single answer.
type SingleImageResult struct {
	ExtractedText string   `json:"extractedText"`
	IsRelevant    *bool    `json:"isRelevant,omitempty"`
	Score         float64  `json:"score"`
	MaxMarks      float64  `json:"maxMarks"`
	Improvements  []string `json:"improvements"`
	Feedback      string   `json:"feedback"`
}

// SheetItemResult is one graded answer of a full-sheet response.
type SheetItemResult struct {
	QuestionID      string   `json:"questionId"`
	QuestionNumber  int      `json:"questionNumber"`
	ExtractedAnswer string   `json:"extractedAnswer"`
	IsRelevant      bool     `json:"isRelevant"`
	Score           float64  `json:"score"`
	MaxMarks        float64  `json:"maxMarks"`
	Improvements    []string `json:"improvements"`
	Feedback        string   `json:"feedback"`
}

// FullSheetResult is the response body for a photographed answer sheet.
type FullSheetResult struct {
	ExtractedText   string            `json:"extractedText"`
	Results         []SheetItemResult `json:"results"`
	TotalScore      float64           `json:"totalScore"`
	TotalMaxMarks   float64           `json:"totalMaxMarks"`
	OverallFeedback string            `json:"overallFeedback"`
}

// ToPipelineQuestions converts request questions for the prompt builder,
// substituting the default of 5 marks where marks are absent or invalid.
func ToPipelineQuestions(specs []QuestionSpec) []genai.Question {
	questions := make([]genai.Question, 0, len(specs))
	for _, q := range specs {
		marks := q.Marks
		if marks <= 0 {
			marks = 5
		}
		questions = append(questions, genai.Question{
			ID:          q.ID,
			Text:        q.Text,
			ModelAnswer: q.ModelAnswer,
			Marks:       marks,
		})
	}
	return questions
}

// ToPipelineImages converts request image parts for the gateway.
func ToPipelineImages(parts []ImagePartDTO) []genai.ImagePart {
	images := make([]genai.ImagePart, 0, len(parts))
	for _, p := range parts {
		mime := p.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		images = append(images, genai.ImagePart{Data: p.Data, MimeType: mime})
	}
	return images
}
