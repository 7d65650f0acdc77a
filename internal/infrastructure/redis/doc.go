// Package redis connects to the Redis server that can back the attempt
// counters (attempts.backend: redis).
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	tracker := compliance.NewRedisAttemptTracker(client.Client, client.KeyPrefix())
package redis
