package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quillworks/quill/internal/accum"
	"github.com/quillworks/quill/internal/client"
	"github.com/quillworks/quill/internal/event"
	"github.com/quillworks/quill/internal/flow"
	"github.com/quillworks/quill/internal/stream"
)

// runChat streams one chat reply from the upstream backend straight to
// stdout, printing each delta as it decodes. Ctrl-C aborts the session;
// whatever text arrived before the abort stays on screen.
func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	upstream := fs.String("upstream", envOr("QUILL_UPSTREAM_URL", "http://127.0.0.1:8080"), "base URL for the upstream backend")
	token := fs.String("token", os.Getenv("QUILL_UPSTREAM_TOKEN"), "Bearer token for the upstream backend")
	model := fs.String("model", os.Getenv("QUILL_MODEL"), "model name to request")
	verbose := fs.Bool("verbose", false, "log session diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	message := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if message == "" {
		return fmt.Errorf("usage: quill chat [--upstream <url>] [--token <token>] [--model <name>] <message>")
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*upstream, *token, logger)
	body, err := c.OpenChat(ctx, client.ChatRequest{
		Model:    *model,
		Messages: []client.ChatMessage{{Role: "user", Content: message}},
	})
	if err != nil {
		return errors.New(flow.FriendlyError(err))
	}

	cf := flow.NewChatFlow(accum.NewChat(nil))
	handlers := cf.Handlers()
	fold := handlers.ContentDelta
	handlers.ContentDelta = func(ev event.ContentDelta) {
		fold(ev)
		fmt.Print(ev.Text)
	}

	sess := stream.New(handlers, stream.Options{Logger: logger})
	out := sess.Run(ctx, body)
	record := cf.Finalize(out)

	if record.Text != "" {
		fmt.Println()
	}
	for _, s := range cf.Summaries {
		fmt.Fprintf(os.Stderr, "summary [%d/%d] %s: %s\n", s.Current, s.Total, s.SectionTitle, s.Summary)
	}

	if msg := cf.FailureMessage(out); msg != "" {
		return errors.New(msg)
	}
	if out.State == stream.Aborted {
		fmt.Fprintln(os.Stderr, "aborted")
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "state=%s frames=%d parse_errors=%d empty_chunks=%d\n",
			out.State, out.Frames, out.ParseErrors, out.EmptyChunks)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// readAllFile reads a document file, with "-" meaning stdin.
func readAllFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
