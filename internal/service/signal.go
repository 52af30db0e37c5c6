package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/neighbournet/neighbournet"
)

const signalChannel = "neighbournet:events"

// SignalService mirrors every dispatched event onto a redis pub/sub
// channel so other instances (or auxiliary consumers) can observe them.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event neighbournet.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, signalChannel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}
