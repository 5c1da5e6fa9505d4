package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Kind string

const (
	KindContractOffered       Kind = "CONTRACT_OFFERED"
	KindContractDeclined      Kind = "CONTRACT_DECLINED"
	KindContractReoffered     Kind = "CONTRACT_REOFFERED"
	KindContractWithdrawn     Kind = "CONTRACT_WITHDRAWN"
	KindContractAccepted      Kind = "CONTRACT_ACCEPTED"
	KindContractFinalized     Kind = "CONTRACT_FINALIZED"
	KindPaymentCompleted      Kind = "PAYMENT_COMPLETED"
	KindContractCompleted     Kind = "CONTRACT_COMPLETED"
	KindCancellationRequested Kind = "CANCELLATION_REQUESTED"
)

type Notification struct {
	Kind        Kind
	RecipientID int64
	ContractID  int64
	ActorID     int64
	Message     string
}

// StreamWriter is the subset of the redis client used to publish onto a stream.
type StreamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Sink publishes notifications for the delivery service to fan out.
type Sink struct {
	client StreamWriter
	stream string
	now    func() time.Time
}

func NewSink(client StreamWriter, stream string) *Sink {
	return &Sink{
		client: client,
		stream: stream,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Sink) Send(ctx context.Context, n Notification) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: 100000,
		Approx: true,
		Values: map[string]interface{}{
			"kind":         string(n.Kind),
			"recipient_id": strconv.FormatInt(n.RecipientID, 10),
			"contract_id":  strconv.FormatInt(n.ContractID, 10),
			"actor_id":     strconv.FormatInt(n.ActorID, 10),
			"message":      n.Message,
			"sent_at":      s.now().Format(time.RFC3339),
		},
	}).Err()
}
