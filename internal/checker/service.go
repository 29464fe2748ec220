// Package checker implements the gmail-checker commands.
package checker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/joshsymonds/gmail-checker/internal/fetch"
	"github.com/joshsymonds/gmail-checker/internal/gmail"
	"github.com/joshsymonds/gmail-checker/internal/watermark"
)

const (
	DefaultFetchCount = 10

	msgNoNew      = "No new messages found."
	msgCleared    = "Cleared read status. The next check will show all unread messages."
	msgNothingSet = "No read status to clear."
)

// Options are per-invocation settings threaded into every command.
type Options struct {
	Quiet      bool // suppress the "no new messages" line
	FetchCount int
}

// WatermarkStore persists the last-checked timestamp.
type WatermarkStore interface {
	Read() (watermark.Timestamp, bool, error)
	Write(ts watermark.Timestamp) error
	Clear() (bool, error)
}

// DetailFetcher resolves message ids to display records.
type DetailFetcher interface {
	FetchAll(ctx context.Context, ids []gmail.MessageID) []fetch.Result
}

// Service wires the watermark, the Gmail client and the detail fetcher.
// Client and Fetcher may be nil for commands that only touch the watermark.
type Service struct {
	Client  gmail.Client
	Store   WatermarkStore
	Fetcher DetailFetcher
	Logger  *slog.Logger
	Clock   func() time.Time
	Out     io.Writer
}

// NewService constructs a Service with sane defaults.
func NewService(client gmail.Client, store WatermarkStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	var fetcher DetailFetcher
	if client != nil {
		fetcher = fetch.NewFetcher(client)
	}
	return &Service{
		Client:  client,
		Store:   store,
		Fetcher: fetcher,
		Logger:  logger,
		Clock:   time.Now,
		Out:     os.Stdout,
	}
}

// Check prints how many new messages match, without fetching details.
func (s *Service) Check(ctx context.Context, opts Options) error {
	ids, err := s.listNew(ctx, opts)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return s.noNew(opts)
	}
	return s.printf("New messages: %d\n", len(ids))
}

// List prints one aligned row per new message.
func (s *Service) List(ctx context.Context, opts Options) error {
	ids, err := s.listNew(ctx, opts)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return s.noNew(opts)
	}
	if s.Fetcher == nil {
		return fmt.Errorf("list: no detail fetcher configured")
	}

	results := s.Fetcher.FetchAll(ctx, ids)
	details := make([]fetch.Detail, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			s.Logger.WarnContext(ctx, "message fetch failed", "error", res.Err)
			continue
		}
		details = append(details, res.Detail)
	}
	return s.printTable(details)
}

// UnreadCount prints the bare number of new messages.
func (s *Service) UnreadCount(ctx context.Context, opts Options) error {
	ids, err := s.listNew(ctx, opts)
	if err != nil {
		return err
	}
	return s.printf("%d\n", len(ids))
}

// MarkAsRead stores the current time as the watermark.
func (s *Service) MarkAsRead(ctx context.Context) error {
	_ = ctx
	now := watermark.FromTime(s.Clock())
	if err := s.Store.Write(now); err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}
	return s.printf("Marked as read up to timestamp: %d\n", now)
}

// ClearRead removes the watermark.
func (s *Service) ClearRead(ctx context.Context) error {
	_ = ctx
	cleared, err := s.Store.Clear()
	if err != nil {
		return fmt.Errorf("clear read status: %w", err)
	}
	if !cleared {
		return s.printf("%s\n", msgNothingSet)
	}
	return s.printf("%s\n", msgCleared)
}

func (s *Service) listNew(ctx context.Context, opts Options) ([]gmail.MessageID, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("no gmail client configured")
	}
	mark, ok, err := s.Store.Read()
	if err != nil {
		return nil, err
	}
	limit := opts.FetchCount
	if limit <= 0 {
		limit = DefaultFetchCount
	}
	q := BuildQuery(mark, ok)
	s.Logger.DebugContext(ctx, "listing messages", "query", q.Raw, "limit", limit)
	ids, err := s.Client.List(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return ids, nil
}

func (s *Service) noNew(opts Options) error {
	if opts.Quiet {
		return nil
	}
	return s.printf("%s\n", msgNoNew)
}

func (s *Service) printTable(details []fetch.Detail) error {
	width := 0
	for _, d := range details {
		width = max(width, utf8.RuneCountInString(d.Sender))
	}
	for _, d := range details {
		if err := s.printf("%-*s | %s | %s\n", width, d.Sender, d.Subject, d.Date); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) printf(format string, args ...any) error {
	if _, err := fmt.Fprintf(s.Out, format, args...); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
