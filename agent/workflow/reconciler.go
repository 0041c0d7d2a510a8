package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	qstashx "github.com/tanpawarit/chative-retail/pkg/qstash"
)

type Publisher interface {
	Publish(ctx context.Context, destination string, body any, opts qstashx.PublishOptions) (string, error)
}

// QStashReconciler publishes delivery jobs to the reconcile callback. The
// order id doubles as the deduplication id so a job is enqueued at most once.
type QStashReconciler struct {
	publisher   Publisher
	destination string
	retries     int
}

func NewQStashReconciler(publisher Publisher, destination string, retries int) *QStashReconciler {
	return &QStashReconciler{publisher: publisher, destination: destination, retries: retries}
}

func (r *QStashReconciler) EnqueueDelivery(ctx context.Context, job ReconcileJob) error {
	retries := r.retries
	messageID, err := r.publisher.Publish(ctx, r.destination, job, qstashx.PublishOptions{
		DeduplicationID: job.OrderID,
		Retries:         &retries,
	})
	if err != nil {
		return fmt.Errorf("enqueue delivery reconciliation for %s: %w", job.OrderID, err)
	}
	log.Ctx(ctx).Info().Str("order_id", job.OrderID).Str("message_id", messageID).Msg("delivery reconciliation enqueued")
	return nil
}
