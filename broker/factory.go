package broker

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/courtside/scorecast/config"
)

// New returns the broker implementation selected by the configuration.
// The redis client may be nil when the memory broker is selected.
func New(cfg *config.Config, client *redis.Client) (Broker, error) {
	switch cfg.App.MessageBroker {
	case config.BrokerMemory:
		return NewMemoryBroker(), nil

	case config.BrokerRedis:
		if client == nil {
			return nil, errors.New("redis broker requires a redis client")
		}
		return NewRedisBroker(client), nil

	default:
		return nil, fmt.Errorf("unknown app.messageBroker %q", cfg.App.MessageBroker)
	}
}
