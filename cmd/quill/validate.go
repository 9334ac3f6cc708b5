package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quillworks/quill/internal/accum"
	"github.com/quillworks/quill/internal/client"
	"github.com/quillworks/quill/internal/editor"
	"github.com/quillworks/quill/internal/flow"
	"github.com/quillworks/quill/internal/stream"
)

// runValidate splits an HTML document into section chunks, runs one
// validation session per chunk, and prints the findings. A chunk whose
// session fails reports its error without losing the other chunks' results.
func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	upstream := fs.String("upstream", envOr("QUILL_UPSTREAM_URL", "http://127.0.0.1:8080"), "base URL for the upstream backend")
	token := fs.String("token", os.Getenv("QUILL_UPSTREAM_TOKEN"), "Bearer token for the upstream backend")
	sectionsPerChunk := fs.Int("sections-per-chunk", 4, "document sections grouped into one validation chunk")
	verbose := fs.Bool("verbose", false, "log session diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: quill validate [--upstream <url>] [--token <token>] <file.html|->")
	}
	if *sectionsPerChunk < 1 {
		return fmt.Errorf("sections-per-chunk must be positive")
	}

	raw, err := readAllFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	doc := editor.NewDocument()
	doc.SetContent(string(raw))
	chunks := chunkSections(doc.Sections(), *sectionsPerChunk)
	if len(chunks) == 0 {
		return fmt.Errorf("document has no content to validate")
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*upstream, *token, logger)
	acc := accum.NewValidation(nil)

	for i, html := range chunks {
		body, err := c.OpenValidation(ctx, client.ValidateRequest{ChunkIndex: i, HTML: html})
		if err != nil {
			acc.MarkError(i, flow.FriendlyError(err))
			continue
		}

		vf := flow.NewValidateFlow(acc, i)
		sess := stream.New(vf.Handlers(), stream.Options{
			ParseErrorCeiling: 15,
			Logger:            logger,
		})
		out := sess.Run(ctx, body)
		vf.Finalize(out)

		if out.State == stream.Aborted {
			break
		}
	}

	printResults(acc.Results())
	return nil
}

// chunkSections groups whole sections into chunk HTML payloads. A document
// with no <h2> headings still yields one chunk carrying the full body.
func chunkSections(sections []editor.Section, perChunk int) []string {
	var chunks []string
	for start := 0; start < len(sections); start += perChunk {
		end := start + perChunk
		if end > len(sections) {
			end = len(sections)
		}
		var b strings.Builder
		for _, s := range sections[start:end] {
			if s.Title != "" {
				fmt.Fprintf(&b, "<h2>%s</h2>", s.Title)
			}
			b.WriteString(s.Content)
		}
		if b.Len() > 0 {
			chunks = append(chunks, b.String())
		}
	}
	return chunks
}

func printResults(results []accum.ChunkResult) {
	total := 0
	for _, res := range results {
		if res.Error != "" {
			fmt.Printf("chunk %d: error: %s\n", res.ChunkIndex, res.Error)
			continue
		}
		fmt.Printf("chunk %d: %d issue(s)\n", res.ChunkIndex, res.Summary.Total)
		for _, issue := range res.Issues {
			fmt.Printf("  [%s/%s] %s: %s\n", issue.Severity, issue.Category, issue.ID, issue.Message)
			if issue.Excerpt != "" {
				fmt.Printf("    excerpt: %s\n", issue.Excerpt)
			}
			if issue.Suggestion != "" {
				fmt.Printf("    suggestion: %s\n", issue.Suggestion)
			}
		}
		total += res.Summary.Total
	}
	fmt.Printf("total: %d issue(s) across %d chunk(s)\n", total, len(results))
}
