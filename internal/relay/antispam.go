package relay

import (
	"sync"
	"time"
)

const antiSpamShards = 32

type antiSpamShard struct {
	mu   sync.Mutex
	last map[int64]time.Time
}

// AntiSpam enforces a minimum interval between accepted messages per
// sender. Rejected attempts do not advance the window, so a burst of
// rejections cannot keep a sender locked out. State is in-memory only and
// resets on restart.
type AntiSpam struct {
	minInterval time.Duration
	shards      [antiSpamShards]antiSpamShard
}

func NewAntiSpam(minInterval time.Duration) *AntiSpam {
	a := &AntiSpam{minInterval: minInterval}
	for i := range a.shards {
		a.shards[i].last = make(map[int64]time.Time)
	}
	return a
}

// Allow accepts and records now when the sender has no prior accepted
// timestamp or the interval has fully elapsed; otherwise rejects without
// touching the stored timestamp.
func (a *AntiSpam) Allow(senderID int64, now time.Time) bool {
	sh := &a.shards[uint64(senderID)%antiSpamShards]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if last, ok := sh.last[senderID]; ok && now.Sub(last) < a.minInterval {
		return false
	}
	sh.last[senderID] = now
	return true
}

// MinInterval exposes the configured window for user-facing throttle text.
func (a *AntiSpam) MinInterval() time.Duration { return a.minInterval }
