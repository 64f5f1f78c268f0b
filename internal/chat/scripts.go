package chat

import (
	"context"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/models"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Both scripts take the chat keys in the order of chatKeys and write nothing
// when the metadata key is gone, so a chat deleted between a read and a write
// is not brought back.
//
// ARGV[1] is the chat TTL and ARGV[2] the log TTL, both in ms.
const refreshTTL = `
redis.call("PEXPIRE", KEYS[1], ARGV[1])
redis.call("PEXPIRE", KEYS[6], ARGV[1])
for i = 2, 5 do
	redis.call("PEXPIRE", KEYS[i], ARGV[2])
end
return 1
`

// writeScript stores messages and optionally rewrites the metadata.
//
// KEYS: meta, messages, order, read, archive meta, pair
// ARGV: ttl, log ttl, metadata JSON or "", then id, score, JSON per message.
// An empty score leaves the order index untouched.
var writeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
if ARGV[3] ~= "" then
	redis.call("SET", KEYS[1], ARGV[3])
	redis.call("SET", KEYS[5], ARGV[3])
end
for i = 4, #ARGV, 3 do
	redis.call("HSET", KEYS[2], ARGV[i], ARGV[i + 2])
	if ARGV[i + 1] ~= "" then
		redis.call("ZADD", KEYS[3], ARGV[i + 1], ARGV[i])
	end
end
` + refreshTTL)

// readScript moves a read marker, updates the reader's chat index entry and
// stores the messages that flipped to read.
//
// KEYS: meta, messages, order, read, archive meta, pair, reader's chat index
// ARGV: ttl, log ttl, reader id, last read id, chat id, index entry JSON,
// then id, JSON per message.
var readScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[4], ARGV[3], ARGV[4])
redis.call("HSET", KEYS[7], ARGV[5], ARGV[6])
for i = 7, #ARGV, 2 do
	redis.call("HSET", KEYS[2], ARGV[i], ARGV[i + 1])
end
` + refreshTTL)

func chatKeys(chat *models.Chat) []string {
	return append(HotKeys(chat.ID), PairKey(chat.Participants[0], chat.Participants[1]))
}

func (s *Store) ttlArgs() []any {
	return []any{s.ttl.Milliseconds(), s.LogTTL().Milliseconds()}
}

// runChatScript runs a guarded script and maps a vanished chat to NotFound.
func (s *Store) runChatScript(ctx context.Context, op string, script *redis.Script, keys []string, args []any) error {
	res, err := s.kv.RunScript(ctx, script, keys, args...)
	if err != nil {
		return err
	}
	n, ok := res.(int64)
	if !ok {
		return apperr.Transient(op, errors.Errorf("unexpected script result %v", res))
	}
	if n == 0 {
		return apperr.NotFound(op, ErrChatNotFound)
	}
	return nil
}

func formatScore(ms int64) string { return strconv.FormatInt(ms, 10) }
