// internal/runtime/googleapi.go: adapts *gmail.Service to the checker client interface
package runtime

import (
	"context"

	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/gmail-checker/internal/gmail"
)

const userID = "me"

type googleClient struct{ svc *gmail.Service }

// NewGoogleAPIClient wraps svc. The service is safe for concurrent use, so
// one instance serves every detail fetch.
func NewGoogleAPIClient(svc *gmail.Service) gc.Client { return &googleClient{svc} }

func (g *googleClient) List(ctx context.Context, q gc.Query, limit int) ([]gc.MessageID, error) {
	call := g.svc.Users.Messages.List(userID).Q(q.Raw).MaxResults(int64(limit))
	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, &gc.APIError{Op: "list", Err: err}
	}
	ids := make([]gc.MessageID, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, gc.MessageID(m.Id))
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (g *googleClient) Get(ctx context.Context, id gc.MessageID) (gc.Message, error) {
	msg, err := g.svc.Users.Messages.Get(userID, string(id)).Format("metadata").Context(ctx).Do()
	if err != nil {
		return gc.Message{}, &gc.APIError{Op: "get", ID: id, Err: err}
	}
	out := gc.Message{ID: gc.MessageID(msg.Id), Snippet: msg.Snippet}
	if msg.Payload != nil {
		out.Headers = make([]gc.Header, 0, len(msg.Payload.Headers))
		for _, hd := range msg.Payload.Headers {
			out.Headers = append(out.Headers, gc.Header{Name: hd.Name, Value: hd.Value})
		}
	}
	return out, nil
}
