package onchain

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// StreamWriter is the subset of the redis client used to publish onto a stream.
type StreamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type MintRequest struct {
	ContractID int64
	ImageURL   string
	Leader     string
	Artist     string
}

// MintQueue hands mint requests to the minting worker through a redis stream.
type MintQueue struct {
	client StreamWriter
	stream string
}

func NewMintQueue(client StreamWriter, stream string) *MintQueue {
	return &MintQueue{client: client, stream: stream}
}

func (q *MintQueue) Enqueue(ctx context.Context, req MintRequest) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: 100000,
		Approx: true,
		Values: map[string]interface{}{
			"contract_id": strconv.FormatInt(req.ContractID, 10),
			"token_id":    strconv.FormatInt(req.ContractID, 10),
			"image_url":   req.ImageURL,
			"leader":      req.Leader,
			"artist":      req.Artist,
		},
	}).Err()
}
