// Command schedule_diff compares two yearly prayer schedules, each read from a
// CSV file or an export URL, and prints the days that differ.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
	"github.com/noah-isme/prayer-schedule-api/internal/service"
)

func main() {
	var (
		before  string
		after   string
		token   string
		timeout time.Duration
		failOn  bool
	)

	flag.StringVar(&before, "before", "http://localhost:8080/api/v1/schedule/export", "CSV file or export URL of the current schedule")
	flag.StringVar(&after, "after", "", "CSV file or export URL of the candidate schedule")
	flag.StringVar(&token, "token", os.Getenv("SCHEDULE_TOKEN"), "Bearer token sent to URL sources")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.BoolVar(&failOn, "fail-on-diff", false, "Exit 1 when the schedules differ")
	flag.Parse()

	if after == "" {
		log.Fatal("-after is required")
	}

	client := &http.Client{Timeout: timeout}
	ctx := context.Background()
	a, err := loadTimeline(ctx, client, before, token)
	if err != nil {
		log.Fatalf("load %s: %v", before, err)
	}
	b, err := loadTimeline(ctx, client, after, token)
	if err != nil {
		log.Fatalf("load %s: %v", after, err)
	}

	diff := service.DiffTimelines(a.Rows, b.Rows)
	printReport(os.Stdout, before, after, a, b, diff)
	if failOn && !diff.Empty() {
		os.Exit(1)
	}
}

func loadTimeline(ctx context.Context, client *http.Client, source, token string) (models.YearParseResult, error) {
	text, err := readSource(ctx, client, source, token)
	if err != nil {
		return models.YearParseResult{}, err
	}
	parsed := service.ParseYear(text)
	if len(parsed.Rows) == 0 {
		return parsed, fmt.Errorf("no usable rows (%d skipped)", len(parsed.Skipped))
	}
	return parsed, nil
}

func readSource(ctx context.Context, client *http.Client, source, token string) (string, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		return string(data), err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	return string(data), err
}

func printReport(w io.Writer, beforeName, afterName string, before, after models.YearParseResult, diff models.TimelineDiff) {
	fmt.Fprintln(w, "Schedule Diff Report")
	fmt.Fprintln(w, "====================")
	fmt.Fprintf(w, "before: %s (%d days, %d skipped lines)\n", beforeName, len(before.Rows), len(before.Skipped))
	fmt.Fprintf(w, "after:  %s (%d days, %d skipped lines)\n", afterName, len(after.Rows), len(after.Skipped))
	for _, day := range diff.Days {
		switch day.Kind {
		case models.ChangeUpdated:
			fmt.Fprintf(w, "[CHANGED] %s %s\n", day.Date, strings.Join(day.Fields, ", "))
		case models.ChangeAdded:
			fmt.Fprintf(w, "[ADDED]   %s\n", day.Date)
		default:
			fmt.Fprintf(w, "[REMOVED] %s\n", day.Date)
		}
	}
	fmt.Fprintf(w, "Added: %d, Removed: %d, Changed: %d\n", diff.Added, diff.Removed, diff.Changed)
}
