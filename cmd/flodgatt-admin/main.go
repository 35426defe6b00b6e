// Command flodgatt-admin is an operator CLI for diagnosing a live
// Flodgatt deployment's Redis subscription state, independent of the
// /admin/timelines HTTP endpoint. It runs PUBSUB NUMSUB against the
// channels named on the command line (or every timeline:* channel when
// none are given) using the modern go-redis/v9 client, which has no
// hot-path latency requirement — unlike internal/redisconn's
// hand-rolled RESP parser used by the server itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:6379", "redis host:port")
		password = flag.String("password", "", "redis password")
		db       = flag.Int("db", 0, "redis logical database")
		pattern  = flag.String("pattern", "timeline:*", "PUBSUB CHANNELS glob pattern to enumerate when no channels are given")
		timeout  = flag.Duration("timeout", 5*time.Second, "command timeout")
	)
	flag.Parse()

	client := redis.NewClient(&redis.Options{
		Addr:     *addr,
		Password: *password,
		DB:       *db,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	channels := flag.Args()
	if len(channels) == 0 {
		var err error
		channels, err = client.PubSubChannels(ctx, *pattern).Result()
		if err != nil {
			fmt.Fprintf(os.Stderr, "flodgatt-admin: list channels: %v\n", err)
			os.Exit(1)
		}
	}

	if len(channels) == 0 {
		fmt.Println("no matching channels")
		return
	}

	counts, err := client.PubSubNumSub(ctx, channels...).Result()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flodgatt-admin: PUBSUB NUMSUB: %v\n", err)
		os.Exit(1)
	}

	for _, ch := range channels {
		fmt.Println(ch + "\t" + strconv.FormatInt(counts[ch], 10))
	}
}
