package triggers

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// FireKey computes the at-most-once dedupe key for one trigger firing
// (§4.3, §8.4: "a trigger fires a task at most once per fire-key"). Cron
// and interval fires key off the trigger ID and the scheduled instant
// (not wall-clock time the scheduler happened to observe it, so a missed
// tick that catches up later still dedupes against the instant it was due
// for); event fires key off the trigger ID and caller-supplied dedupe
// token, since two distinct events can carry the same instant.
func FireKey(trig *Trigger, scheduledFor time.Time, eventDedupe string) string {
	switch trig.Kind {
	case KindEvent:
		return hashKey(trig.ID, trig.EventName, eventDedupe)
	default:
		return hashKey(trig.ID, scheduledFor.UTC().Format(time.RFC3339))
	}
}

func hashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
