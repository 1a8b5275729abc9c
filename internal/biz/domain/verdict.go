package domain

import "time"

// VerdictKind discriminates moderation verdicts
type VerdictKind string

const (
	VerdictNoAction VerdictKind = "no_action"
	VerdictWarn     VerdictKind = "warn"
	VerdictMute     VerdictKind = "mute"
	VerdictBan      VerdictKind = "ban"
)

// Verdict is the result of evaluating an event against the moderation
// thresholds. It is pure function output and carries no side effects.
type Verdict struct {
	Kind     VerdictKind
	Reason   string
	Duration time.Duration // set for mute verdicts
	// Exempt is set when a rule matched but the author's privileged role
	// suppressed the action. The pipeline logs these to the audit channel.
	Exempt bool
}

// NoAction is the zero verdict
func NoAction() Verdict {
	return Verdict{Kind: VerdictNoAction}
}

// IsActionable reports whether the verdict requires dispatching an action
func (v Verdict) IsActionable() bool {
	return v.Kind != VerdictNoAction
}
