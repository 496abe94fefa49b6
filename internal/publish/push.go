package publish

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/betbot/swingfeed/internal/domain"
	"github.com/betbot/swingfeed/internal/metrics"
	"github.com/betbot/swingfeed/pkg/httpclient"
)

// PushSink delivers results to a downstream ingest endpoint with a single
// POST per result. Delivery is best effort: a failure or a non-202 reply
// is logged and counted, never retried, and never stalls the pipeline.
type PushSink struct {
	client *httpclient.Client
}

func NewPushSink(baseURL string, timeout time.Duration) *PushSink {
	return &PushSink{client: httpclient.New(baseURL, timeout).NoRetry()}
}

// Deliver posts one result and reports whether the downstream accepted
// it. The downstream acknowledges queued-for-processing with 202
// Accepted; anything else counts as a failed push.
func (p *PushSink) Deliver(ctx context.Context, r domain.PlayResult) bool {
	endpoint := fmt.Sprintf("/games/%s/plays", r.EventID)
	status, err := p.client.PostJSON(ctx, endpoint, r)
	if err != nil {
		metrics.PushFailures.Add(1)
		log.Warnf("push play %s for event %s: %v", r.PlayID, r.EventID, err)
		return false
	}
	if status != http.StatusAccepted {
		metrics.PushFailures.Add(1)
		log.Warnf("push play %s for event %s: unexpected status %d", r.PlayID, r.EventID, status)
		return false
	}
	return true
}
