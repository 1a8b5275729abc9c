package usecase

import (
	"fmt"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
)

// Thresholds is the read-only configuration snapshot the evaluator
// decides against
type Thresholds struct {
	BurstCount      int
	BurstWindow     time.Duration
	TrapChannelID   string
	PrivilegedRoles []string
	MuteDuration    time.Duration // verdict duration when a mute is warranted
}

// Evaluate decides whether a moderation action is warranted for an event.
// It is deterministic and performs no I/O: the same event and thresholds
// always produce the same verdict.
func Evaluate(ev domain.Event, th Thresholds) domain.Verdict {
	switch e := ev.(type) {
	case domain.MessageBurst:
		return evaluateBurst(e, th)
	default:
		return domain.NoAction()
	}
}

func evaluateBurst(e domain.MessageBurst, th Thresholds) domain.Verdict {
	privileged := memberHasAnyRole(e.AuthorRoles, th.PrivilegedRoles)

	// no one is supposed to post in the trap channel
	if th.TrapChannelID != "" && e.ChannelID == th.TrapChannelID {
		if privileged {
			return domain.Verdict{
				Kind:   domain.VerdictNoAction,
				Reason: "privileged user posted in trap channel",
				Exempt: true,
			}
		}
		return domain.Verdict{
			Kind:   domain.VerdictBan,
			Reason: "message detected in trap channel",
		}
	}

	// a burst exactly at the threshold triggers
	if th.BurstCount > 0 && e.Count >= th.BurstCount && e.Window <= th.BurstWindow {
		reason := fmt.Sprintf("message burst: %d messages within %s", e.Count, e.Window)
		if privileged {
			return domain.Verdict{
				Kind:   domain.VerdictNoAction,
				Reason: reason,
				Exempt: true,
			}
		}
		return domain.Verdict{
			Kind:   domain.VerdictWarn,
			Reason: reason,
		}
	}

	return domain.NoAction()
}

func memberHasAnyRole(roles, wanted []string) bool {
	for _, r := range roles {
		for _, w := range wanted {
			if r == w {
				return true
			}
		}
	}
	return false
}
