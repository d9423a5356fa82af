// Package redis connects to Redis with go-redis/v9 and exposes a health check.
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// The client satisfies redis.UniversalClient and can be handed to queue.NewRedisStorage.
package redis
