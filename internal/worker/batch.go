package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// Checker validates one statement synchronously
type Checker interface {
	Check(ctx context.Context, text string) (*model.CredibilityReport, error)
}

// CheckJob validates one statement of a batch
type CheckJob struct {
	Index   int
	Text    string
	Checker Checker
}

// Key identifies the job by its position in the batch
func (j *CheckJob) Key() string {
	return fmt.Sprintf("line-%d", j.Index)
}

// Execute executes the check job
func (j *CheckJob) Execute(ctx context.Context) Result {
	report, err := j.Checker.Check(ctx, j.Text)
	return &CheckResult{
		Index:  j.Index,
		Text:   j.Text,
		Report: report,
		Error:  err,
	}
}

// CheckResult represents the result of a check job
type CheckResult struct {
	Index  int
	Text   string
	Report *model.CredibilityReport
	Error  error
}

// GetError returns the error from the check result
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor validates many statements concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessStatements checks statements concurrently; results keep input
// order and there is one result per statement
func (b *BatchProcessor) ProcessStatements(ctx context.Context, statements []string) []*CheckResult {
	if len(statements) == 0 {
		return []*CheckResult{}
	}

	pool := NewPool(b.concurrency, WithContext(ctx))
	pool.Start()

	for i, text := range statements {
		if _, err := pool.Submit(&CheckJob{Index: i, Text: text, Checker: b.checker}); err != nil {
			break
		}
	}

	results := pool.Wait()

	checkResults := make([]*CheckResult, 0, len(statements))
	done := make(map[int]bool, len(results))
	for _, result := range results {
		r := result.(*CheckResult)
		done[r.Index] = true
		checkResults = append(checkResults, r)
	}

	// Statements the pool never ran, e.g. after cancellation
	for i, text := range statements {
		if done[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = ErrPoolClosed
		}
		checkResults = append(checkResults, &CheckResult{
			Index: i,
			Text:  text,
			Error: fmt.Errorf("not checked: %w", err),
		})
	}

	sort.Slice(checkResults, func(i, j int) bool {
		return checkResults[i].Index < checkResults[j].Index
	})
	return checkResults
}

// ProcessFile reads statements from a file and checks them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CheckResult, error) {
	statements, err := ReadLinesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}

	return b.ProcessStatements(ctx, statements), nil
}

// ReadLinesFromFile reads one statement per line, skipping blanks, comments and duplicates
func ReadLinesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return lines, nil
}
