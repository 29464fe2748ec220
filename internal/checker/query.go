package checker

import (
	"fmt"
	"strings"

	"github.com/joshsymonds/gmail-checker/internal/gmail"
	"github.com/joshsymonds/gmail-checker/internal/watermark"
)

var basePredicates = []string{"is:important", "is:unread"}

// BuildQuery returns the unread-important query, bounded below by the
// watermark when one is set. The bound is one second past the watermark so
// the last message seen does not come back on the next check.
func BuildQuery(mark watermark.Timestamp, ok bool) gmail.Query {
	parts := append([]string(nil), basePredicates...)
	if ok {
		parts = append(parts, fmt.Sprintf("after:%d", mark.Seconds()+1))
	}
	return gmail.Query{Raw: strings.Join(parts, " ")}
}
