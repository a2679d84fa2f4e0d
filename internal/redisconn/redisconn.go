// Package redisconn opens the Token Store's Redis connection.
package redisconn

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Connect parses redisURL and verifies connectivity with a Ping before
// returning the client.
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
