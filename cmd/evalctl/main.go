// evalctl drives the evaluation API from the command line: grade a typed
// answer, a batch of answers, or photographed pages, with the same
// backend-first/fallback protocol the web client uses.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/markwise/markwise-api/internal/dto"
	"github.com/markwise/markwise-api/pkg/client"
	"github.com/markwise/markwise-api/pkg/imaging"
)

var (
	serverURL   string
	backendOnly bool
	timeout     time.Duration
	verbose     bool
)

func main() {
	root := &cobra.Command{
		Use:           "evalctl",
		Short:         "Grade answers against the Markwise evaluation API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the evaluation API")
	root.PersistentFlags().BoolVar(&backendOnly, "backend-only", false, "disable the direct-to-model fallback")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request timeout")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log dispatch decisions to stderr")

	root.AddCommand(newTextCmd(), newBatchCmd(), newImageCmd(), newSheetCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newDispatcher() *client.Dispatcher {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	if !verbose {
		logger = zerolog.Nop()
	}

	store, err := client.NewCredentialStore()
	if err != nil {
		store = nil
	}

	return client.New(client.Config{
		BaseURL:      serverURL,
		BackendOnly:  backendOnly,
		Credentials:  store,
		PromptForKey: promptForKey,
		Timeout:      timeout,
		Logger:       logger,
	})
}

func promptForKey() (string, error) {
	fmt.Fprint(os.Stderr, "Backend unreachable. Enter a Gemini API key for direct evaluation: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTextCmd() *cobra.Command {
	var (
		question    string
		modelAnswer string
		answer      string
		maxMarks    int
	)

	cmd := &cobra.Command{
		Use:   "text",
		Short: "Grade one typed answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := newDispatcher().EvaluateText(context.Background(), dto.SingleTextRequest{
				Question:      question,
				ModelAnswer:   modelAnswer,
				StudentAnswer: answer,
				MaxMarks:      maxMarks,
			})
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&question, "question", "", "question text")
	cmd.Flags().StringVar(&modelAnswer, "model-answer", "", "instructor's model answer")
	cmd.Flags().StringVar(&answer, "answer", "", "student's answer")
	cmd.Flags().IntVar(&maxMarks, "max-marks", 5, "maximum marks")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("answer")

	return cmd
}

// batchFile is the on-disk shape accepted by `evalctl batch`.
type batchFile struct {
	Questions []dto.QuestionSpec `json:"questions"`
	Answers   map[string]string  `json:"answers"`
}

func newBatchCmd() *cobra.Command {
	var (
		file string
		each bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Grade a set of typed answers from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var payload batchFile
			if err := json.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if len(payload.Questions) == 0 {
				return fmt.Errorf("%s contains no questions", file)
			}

			d := newDispatcher()
			if each {
				return printJSON(d.EvaluateEach(context.Background(), payload.Questions, payload.Answers))
			}
			return printJSON(d.EvaluateBatch(context.Background(), dto.BatchTextRequest{
				Questions: payload.Questions,
				Answers:   payload.Answers,
			}))
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON file with questions and answers")
	cmd.Flags().BoolVar(&each, "each", false, "grade questions as concurrent single requests")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func loadPages(paths []string) ([]dto.ImagePartDTO, error) {
	var pages imaging.PageSet
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := pages.Add(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	parts := make([]dto.ImagePartDTO, 0, pages.Len())
	for _, page := range pages.Pages() {
		parts = append(parts, dto.ImagePartDTO{Data: page.Base64, MimeType: page.MimeType})
	}
	return parts, nil
}

func newImageCmd() *cobra.Command {
	var (
		question    string
		modelAnswer string
		maxMarks    int
	)

	cmd := &cobra.Command{
		Use:   "image <page.jpg> [page2.jpg ...]",
		Short: "Grade a photographed answer, one or more pages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := loadPages(args)
			if err != nil {
				return err
			}
			result := newDispatcher().EvaluateImage(context.Background(), dto.OCREvaluateRequest{
				Images:      images,
				Question:    question,
				ModelAnswer: modelAnswer,
				MaxMarks:    maxMarks,
			})
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&question, "question", "", "question the photo answers")
	cmd.Flags().StringVar(&modelAnswer, "model-answer", "", "instructor's model answer")
	cmd.Flags().IntVar(&maxMarks, "max-marks", 5, "maximum marks")

	return cmd
}

func newSheetCmd() *cobra.Command {
	var questionsFile string

	cmd := &cobra.Command{
		Use:   "sheet <page.jpg> [page2.jpg ...]",
		Short: "Grade a photographed answer sheet against a question list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(questionsFile)
			if err != nil {
				return err
			}
			var questions []dto.QuestionSpec
			if err := json.Unmarshal(data, &questions); err != nil {
				return fmt.Errorf("parse %s: %w", questionsFile, err)
			}
			if len(questions) == 0 {
				return fmt.Errorf("%s contains no questions", questionsFile)
			}

			images, err := loadPages(args)
			if err != nil {
				return err
			}
			result := newDispatcher().EvaluateFullSheet(context.Background(), dto.OCREvaluateRequest{
				Images:    images,
				Questions: questions,
			})
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&questionsFile, "questions", "", "JSON file with the question list")
	_ = cmd.MarkFlagRequired("questions")

	return cmd
}
