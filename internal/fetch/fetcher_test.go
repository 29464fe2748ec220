package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joshsymonds/gmail-checker/internal/gmail"
)

type fakeClient struct {
	mu       sync.Mutex
	messages map[gmail.MessageID]gmail.Message
	fail     map[gmail.MessageID]error
	gets     []gmail.MessageID
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeClient) List(ctx context.Context, q gmail.Query, limit int) ([]gmail.MessageID, error) {
	_ = ctx
	_ = q
	_ = limit
	return nil, nil
}

func (f *fakeClient) Get(ctx context.Context, id gmail.MessageID) (gmail.Message, error) {
	_ = ctx
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, id)
	if err := f.fail[id]; err != nil {
		return gmail.Message{}, err
	}
	return f.messages[id], nil
}

func message(id gmail.MessageID, headers ...string) gmail.Message {
	msg := gmail.Message{ID: id}
	for i := 0; i+1 < len(headers); i += 2 {
		msg.Headers = append(msg.Headers, gmail.Header{Name: headers[i], Value: headers[i+1]})
	}
	return msg
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	errBoom := errors.New("connection reset")
	client := &fakeClient{
		messages: map[gmail.MessageID]gmail.Message{},
		fail:     map[gmail.MessageID]error{"3": errBoom},
	}
	ids := []gmail.MessageID{"1", "2", "3", "4", "5"}
	for _, id := range ids {
		client.messages[id] = message(id, "From", "Sender "+string(id)+" <s"+string(id)+"@example.com>", "Subject", "subject "+string(id))
	}

	f := &Fetcher{Client: client, Location: time.UTC}
	results := f.FetchAll(context.Background(), ids)

	if len(results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(results))
	}
	var ok, failed int
	for i, res := range results {
		if res.Err != nil {
			failed++
			var fe *FetchError
			if !errors.As(res.Err, &fe) {
				t.Fatalf("result %d: expected *FetchError, got %T", i, res.Err)
			}
			if fe.ID != "3" || !errors.Is(res.Err, errBoom) {
				t.Fatalf("unexpected fetch error: %v", res.Err)
			}
			continue
		}
		ok++
		if res.Detail.ID != ids[i] {
			t.Fatalf("result %d out of order: got id %s", i, res.Detail.ID)
		}
		if want := "Sender " + string(ids[i]); res.Detail.Sender != want {
			t.Fatalf("result %d sender %q want %q", i, res.Detail.Sender, want)
		}
	}
	if ok != 4 || failed != 1 {
		t.Fatalf("expected 4 ok and 1 failure, got %d and %d", ok, failed)
	}
	if len(client.gets) != len(ids) {
		t.Fatalf("expected every id fetched once, got %v", client.gets)
	}
}

func TestFetchAllRespectsWorkerLimit(t *testing.T) {
	client := &fakeClient{messages: map[gmail.MessageID]gmail.Message{}, delay: 5 * time.Millisecond}
	ids := make([]gmail.MessageID, 12)
	for i := range ids {
		ids[i] = gmail.MessageID(fmt.Sprintf("id-%02d", i))
	}
	f := &Fetcher{Client: client, Workers: 2}
	results := f.FetchAll(context.Background(), ids)
	if len(results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(results))
	}
	if peak := client.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, saw %d", peak)
	}
	for i, res := range results {
		if res.Detail.ID != ids[i] {
			t.Fatalf("missing id fallback for result %d: %q", i, res.Detail.ID)
		}
	}
}

func TestFetchAllEmpty(t *testing.T) {
	f := NewFetcher(&fakeClient{})
	if got := f.FetchAll(context.Background(), nil); len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name string
		msg  gmail.Message
		want Detail
	}{
		{
			name: "all-headers",
			msg: message("a",
				"From", `"Alice Example" <alice@example.com>`,
				"Subject", "Quarterly numbers",
				"Date", "Tue, 14 Nov 2023 22:13:20 +0000",
			),
			want: Detail{ID: "a", Sender: "Alice Example", Subject: "Quarterly numbers", Date: "2023-11-14 22:13"},
		},
		{
			name: "bare-address",
			msg:  message("b", "From", "bob@example.com", "Subject", "hi", "Date", "Tue, 14 Nov 2023 22:13:20 +0000"),
			want: Detail{ID: "b", Sender: "bob@example.com", Subject: "hi", Date: "2023-11-14 22:13"},
		},
		{
			name: "missing-headers",
			msg:  message("c"),
			want: Detail{ID: "c", Sender: UnknownSender, Subject: NoSubject, Date: UnknownDate},
		},
		{
			name: "unparsable-date",
			msg:  message("d", "From", "d@example.com", "Date", "sometime last week"),
			want: Detail{ID: "d", Sender: "d@example.com", Subject: NoSubject, Date: UnknownDate},
		},
		{
			name: "empty-from",
			msg:  message("e", "From", "  ", "Subject", ""),
			want: Detail{ID: "e", Sender: UnknownSender, Subject: "", Date: UnknownDate},
		},
		{
			name: "header-names-case-sensitive",
			msg:  message("f", "subject", "lower", "from", "x@example.com"),
			want: Detail{ID: "f", Sender: UnknownSender, Subject: NoSubject, Date: UnknownDate},
		},
		{
			name: "first-duplicate-wins",
			msg:  message("g", "Subject", "first", "Subject", "second"),
			want: Detail{ID: "g", Sender: UnknownSender, Subject: "first", Date: UnknownDate},
		},
		{
			name: "date-converted-to-location",
			msg:  message("h", "Date", "Tue, 14 Nov 2023 18:13:20 -0400"),
			want: Detail{ID: "h", Sender: UnknownSender, Subject: NoSubject, Date: "2023-11-14 22:13"},
		},
		{
			name: "address-list-uses-first-mailbox",
			msg:  message("j", "From", "John Doe <john@example.com>, Jane <j@x.com>"),
			want: Detail{ID: "j", Sender: "John Doe", Subject: NoSubject, Date: UnknownDate},
		},
		{
			name: "address-list-first-without-name",
			msg:  message("k", "From", "john@example.com, Jane <j@x.com>"),
			want: Detail{ID: "k", Sender: "john@example.com", Subject: NoSubject, Date: UnknownDate},
		},
		{
			name: "unterminated-angle-bracket",
			msg:  message("l", "From", "Acme Support <support@acme.com"),
			want: Detail{ID: "l", Sender: "Acme Support", Subject: NoSubject, Date: UnknownDate},
		},
		{
			name: "unparsable-from-keeps-raw",
			msg:  message("m", "From", "Acme Support Team"),
			want: Detail{ID: "m", Sender: "Acme Support Team", Subject: NoSubject, Date: UnknownDate},
		},
		{
			name: "obsolete-zone-name",
			msg:  message("n", "Date", "Tue, 14 Nov 2023 17:13:20 EST"),
			want: Detail{ID: "n", Sender: UnknownSender, Subject: NoSubject, Date: "2023-11-14 22:13"},
		},
		{
			name: "obsolete-daylight-zone-name",
			msg:  message("o", "Date", "Tue, 14 Nov 2023 15:13:20 PDT"),
			want: Detail{ID: "o", Sender: UnknownSender, Subject: NoSubject, Date: "2023-11-14 22:13"},
		},
		{
			name: "encoded-display-name",
			msg:  message("i", "From", "=?UTF-8?Q?Andr=C3=A9?= <andre@example.com>"),
			want: Detail{ID: "i", Sender: "André", Subject: NoSubject, Date: UnknownDate},
		},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got := ParseDetail(tc.msg, time.UTC)
			if got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}
