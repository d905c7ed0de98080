package ledger

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/pkg/errs"
)

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, errs.Wrap(err, "parse redis url")
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()
		return nil, errs.Wrap(err, "ping redis")
	}
	return client, nil
}

// enqueue appends the transfer to the stream unless its dedup key exists.
// Both steps run inside one script, so a transfer is queued at most once.
var enqueue = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX') then
  redis.call('XADD', KEYS[2], '*',
    'key', ARGV[1],
    'agreement_id', ARGV[2],
    'recipient', ARGV[3],
    'amount', ARGV[4],
    'created_at', ARGV[5])
  return 1
end
return 0
`)

// RedisLedger hands transfers to a payment worker through a Redis stream.
// The worker owns the actual funds movement; this adapter guarantees that
// each transfer key reaches the stream once.
type RedisLedger struct {
	client *redis.Client
	stream string
	prefix string
}

// NewRedisLedger appends transfers to stream. Dedup keys live under the
// metaads:transfer: prefix and never expire.
func NewRedisLedger(client *redis.Client, stream string) *RedisLedger {
	return &RedisLedger{client: client, stream: stream, prefix: "metaads:transfer:"}
}

// Transfer queues t once per key. A replayed key returns nil without
// touching the stream.
func (l *RedisLedger) Transfer(ctx context.Context, t domain.Transfer) error {
	err := enqueue.Run(ctx, l.client,
		[]string{l.prefix + t.Key, l.stream},
		t.Key,
		strconv.FormatInt(t.AgreementID, 10),
		t.Recipient,
		t.Amount.String(),
		strconv.FormatInt(t.CreatedAt, 10),
	).Err()
	if err != nil {
		return errs.Wrapf(err, "enqueue transfer %s", t.Key)
	}
	return nil
}
