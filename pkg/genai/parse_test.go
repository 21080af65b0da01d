package genai

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "json fence", in: "```json\n{\"score\": 3}\n```", want: `{"score": 3}`},
		{name: "bare fence", in: "```\n{\"score\": 3}\n```", want: `{"score": 3}`},
		{name: "no fence", in: `  {"score": 3}  `, want: `{"score": 3}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, StripCodeFences(tc.in))
		})
	}
}

func TestParseSingleWellFormed(t *testing.T) {
	raw := "```json\n{\"score\": 4.5, \"improvements\": [\"Add examples\"], \"feedback\": \"Good effort\"}\n```"

	payload := ParseSingle(raw)

	require.Equal(t, 4.5, payload.Score)
	require.Equal(t, []string{"Add examples"}, payload.Improvements)
	require.Equal(t, "Good effort", payload.Feedback)
	require.Nil(t, payload.IsRelevant)
}

func TestParseSingleMalformed(t *testing.T) {
	payload := ParseSingle("I cannot evaluate this answer, sorry.")

	require.Zero(t, payload.Score)
	require.NotEmpty(t, payload.Feedback)
	require.Len(t, payload.Improvements, 2)
	require.Contains(t, payload.Improvements[1], "I cannot evaluate")
}

func TestParseSingleMissingScore(t *testing.T) {
	payload := ParseSingle(`{"feedback": "no score here"}`)

	require.Zero(t, payload.Score)
	require.Equal(t, "AI evaluation could not be parsed.", payload.Feedback)
}

func TestParseSingleDiagnosticTruncated(t *testing.T) {
	long := strings.Repeat("x", 1000)

	payload := ParseSingle(long)

	require.Len(t, payload.Improvements, 2)
	require.Len(t, payload.Improvements[1], 200)
}

func TestParseSingleDiagnosticKeepsRunesIntact(t *testing.T) {
	// 300 bytes of 3-byte runes; 200 is not a rune boundary.
	long := strings.Repeat("日", 100)

	payload := ParseSingle(long)

	require.Len(t, payload.Improvements, 2)
	diag := payload.Improvements[1]
	require.True(t, utf8.ValidString(diag))
	require.LessOrEqual(t, len(diag), 200)
	require.Equal(t, strings.Repeat("日", 66), diag)
}

func TestTruncateBacksUpToRuneBoundary(t *testing.T) {
	require.Equal(t, "abc", truncate("abcdef", 3))
	require.Equal(t, "abcd", truncate("abcd", 10))
	require.Equal(t, "日", truncate("日本", 4))
	require.Equal(t, "", truncate("日本", 2))
}

func TestParseSingleCoercesNilFields(t *testing.T) {
	payload := ParseSingle(`{"score": 2}`)

	require.NotNil(t, payload.Improvements)
	require.Empty(t, payload.Improvements)
	require.Equal(t, "No feedback", payload.Feedback)
}

func TestParseBatchFallbackCoversEveryQuestion(t *testing.T) {
	questions := []Question{{ID: "q1", Marks: 5}, {ID: "q2", Marks: 5}, {ID: "q3", Marks: 5}}

	items := ParseBatch("not json at all", questions)

	require.Len(t, items, 3)
	for i, item := range items {
		require.Equal(t, questions[i].ID, item.QuestionID)
		require.Zero(t, item.Score)
		require.NotEmpty(t, item.Feedback)
	}
}

func TestParseBatchWellFormed(t *testing.T) {
	raw := "```json\n[{\"questionId\":\"q1\",\"score\":3,\"feedback\":\"ok\"}]\n```"

	items := ParseBatch(raw, []Question{{ID: "q1", Marks: 5}})

	require.Len(t, items, 1)
	require.Equal(t, "q1", items[0].QuestionID)
	require.Equal(t, float64(3), items[0].Score)
	require.NotNil(t, items[0].Improvements)
}

func TestParseSheetFallbackSynthesizesEntries(t *testing.T) {
	questions := []Question{{ID: "q1", Marks: 10}, {ID: "q2"}}

	sheet := ParseSheet("the model rambled instead", questions)

	require.Len(t, sheet.Results, 2)
	require.Equal(t, "q1", sheet.Results[0].QuestionID)
	require.Equal(t, float64(10), sheet.Results[0].MaxMarks)
	// Absent marks default to 5.
	require.Equal(t, float64(5), sheet.Results[1].MaxMarks)
	require.NotEmpty(t, sheet.OverallFeedback)
}

func TestParseSheetWellFormed(t *testing.T) {
	raw := `{
		"extractedText": "Q1: supply and demand",
		"results": [{"questionId": "q1", "questionNumber": 1, "score": 4, "maxMarks": 5, "feedback": "good"}],
		"totalScore": 4,
		"totalMaxMarks": 5,
		"overallFeedback": "solid work"
	}`

	sheet := ParseSheet(raw, []Question{{ID: "q1", Marks: 5}})

	require.Equal(t, "Q1: supply and demand", sheet.ExtractedText)
	require.Len(t, sheet.Results, 1)
	require.NotNil(t, sheet.Results[0].Improvements)
	require.Equal(t, "solid work", sheet.OverallFeedback)
}
