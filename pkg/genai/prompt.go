package genai

import (
	"fmt"
	"strings"
)

// Question is one question/model-answer/marks tuple handed to the prompt
// builder for batch and full-sheet grading.
type Question struct {
	ID          string
	Text        string
	ModelAnswer string
	Marks       int
}

// Grading fairness depends on the model applying this policy exactly; the
// wording is part of the pipeline's contract and must not drift.
const relevancePolicy = `⚠️ RELEVANCE ENFORCEMENT (MUST FOLLOW):
%s
- If the ENTIRE answer is completely unrelated to the question (different topic, different subject, different chapter entirely), give score = 0. Set isRelevant = false.
- If multiple images are uploaded and SOME images contain irrelevant content (e.g., one page has the correct answer but another page has an unrelated graph/diagram/text), apply a 50%% PENALTY. Grade the relevant content fully, then cut the score in HALF. For example: if the relevant answer deserves 5/5 but one image is irrelevant, give 2.5/5. Always explain the deduction in feedback.
- If the answer partially addresses the topic but is incomplete or inaccurate, give reduced marks — NOT zero.
- Only give 0 if NOTHING in the answer relates to the question at all.`

// BuildTextPrompt returns the instruction for grading one typed answer.
// Output is deterministic: identical inputs produce identical bytes.
func BuildTextPrompt(question, modelAnswer, studentAnswer string, maxMarks int) string {
	return fmt.Sprintf(`Evaluate as an economics expert. Strict JSON ONLY.

Question: %s
Model Answer: %s
Student Answer: %s
Maximum Marks: %d

Return JSON:
{
  "score": <0-%d>,
  "improvements": ["...", "..."],
  "feedback": "..."
}`, question, modelAnswer, studentAnswer, maxMarks, maxMarks)
}

// BuildBatchPrompt returns the instruction for grading several typed
// answers in one completion. Questions keep their input order and the
// model is asked to echo each questionId so results can be joined.
func BuildBatchPrompt(questions []Question, answers map[string]string) string {
	var sb strings.Builder
	sb.WriteString("Evaluate as an economics expert. Strict JSON ONLY.\n\n")
	fmt.Fprintf(&sb, "You are grading %d questions answered by one student.\n", len(questions))

	for i, q := range questions {
		answer, ok := answers[q.ID]
		if !ok || strings.TrimSpace(answer) == "" {
			answer = "No answer provided"
		}
		fmt.Fprintf(&sb, `
Q%d (ID: %s):
Question: %s
Model Answer: %s
Student Answer: %s
Maximum Marks: %d
`, i+1, q.ID, q.Text, q.ModelAnswer, answer, q.Marks)
	}

	sb.WriteString(`
Return STRICT JSON only (no markdown, no code blocks): an array with exactly one entry per question, in the same order as listed above:
[
  {
    "questionId": "ID_FROM_INPUT",
    "score": <number>,
    "improvements": ["suggestion1", "suggestion2"],
    "feedback": "..."
  }
]
If no answer was provided for a question, give score 0 and say so in the feedback.`)
	return sb.String()
}

// BuildImagePrompt returns the instruction for grading one photographed
// answer (possibly spanning several pages).
func BuildImagePrompt(question, modelAnswer string, maxMarks, pageCount int) string {
	if strings.TrimSpace(question) == "" {
		question = "Not specified — please evaluate the answer in the image."
	}
	if strings.TrimSpace(modelAnswer) == "" {
		modelAnswer = "Not provided — evaluate based on general knowledge."
	}
	if maxMarks <= 0 {
		maxMarks = 5
	}

	imageRef := "this image"
	if pageCount > 1 {
		imageRef = "these images (the student uploaded multiple pages for one answer)"
	}

	var sb strings.Builder
	sb.WriteString("You are an expert teacher evaluating a student's handwritten/printed answer.\n\n")
	fmt.Fprintf(&sb, relevancePolicy, "Before grading, verify that the student's answer is about the question asked.")
	sb.WriteString("\n\nIMPORTANT INSTRUCTIONS:\n")
	fmt.Fprintf(&sb, "1. First, READ and EXTRACT all the text written in %s.\n", imageRef)
	sb.WriteString("2. This is the student's answer to the question below.\n")
	sb.WriteString("3. FIRST check relevance of the content, THEN evaluate the relevant parts.\n\n")
	fmt.Fprintf(&sb, "Question: %s\nModel Answer: %s\nMax Marks: %d\n\n", question, modelAnswer, maxMarks)
	fmt.Fprintf(&sb, `Return STRICT JSON only (no markdown, no code blocks):
{
  "extractedText": "The full raw text you extracted from the image(s)",
  "isRelevant": true or false,
  "score": <number>,
  "maxMarks": %d,
  "improvements": ["suggestion1", "suggestion2"],
  "feedback": "Detailed feedback — note any irrelevant content but grade the relevant parts fairly"
}`, maxMarks)
	return sb.String()
}

// BuildFullSheetPrompt returns the instruction for grading a photographed
// answer sheet holding answers to every question in the list.
func BuildFullSheetPrompt(questions []Question, pageCount int) string {
	imageRef := "this answer sheet image"
	if pageCount > 1 {
		imageRef = "these answer sheet images (the student has uploaded multiple pages)"
	}

	var sb strings.Builder
	sb.WriteString("You are an expert teacher evaluating a student's handwritten/printed answer sheet.\n\n")
	fmt.Fprintf(&sb, relevancePolicy, "Before grading EACH answer, verify that the student's answer is about the question asked.")
	sb.WriteString("\n\nIMPORTANT INSTRUCTIONS:\n")
	fmt.Fprintf(&sb, "1. First, carefully READ and EXTRACT all the text visible in %s.\n", imageRef)
	sb.WriteString("2. The student may have numbered their answers (Q1, Q2, Ans 1, etc.) — identify which answer corresponds to which question.\n")
	sb.WriteString(`3. If an answer for a question is not found in the image, mark it as "Not attempted" with score 0.` + "\n")
	sb.WriteString("4. For each answer, FIRST check relevance of the content, THEN evaluate the relevant parts.\n\n")

	sb.WriteString("QUESTIONS TO EVALUATE:\n")
	for i, q := range questions {
		modelAnswer := q.ModelAnswer
		if strings.TrimSpace(modelAnswer) == "" {
			modelAnswer = "Not provided"
		}
		marks := q.Marks
		if marks <= 0 {
			marks = 5
		}
		fmt.Fprintf(&sb, `
Q%d (ID: %s):
Question: %s
Model Answer: %s
Max Marks: %d
`, i+1, q.ID, q.Text, modelAnswer, marks)
	}

	sb.WriteString(`
Return STRICT JSON only (no markdown, no code blocks):
{
  "extractedText": "The full raw text you extracted from the image(s)",
  "results": [
    {
      "questionId": "ID_FROM_INPUT",
      "questionNumber": 1,
      "extractedAnswer": "The specific text you identified as the answer for this question",
      "isRelevant": true or false,
      "score": <number>,
      "maxMarks": <number>,
      "improvements": ["suggestion1", "suggestion2"],
      "feedback": "Detailed feedback — if partially irrelevant, note what was irrelevant and grade only the relevant parts"
    }
  ],
  "totalScore": <number>,
  "totalMaxMarks": <number>,
  "overallFeedback": "General feedback on the entire answer sheet"
}`)
	return sb.String()
}
