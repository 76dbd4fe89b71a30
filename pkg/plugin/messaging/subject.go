package messaging

import (
	"fmt"

	"github.com/nylon-dev/nylon/pkg/plugin/abi"
)

// EventSubject builds the <prefix>.<plugin>.<phase_fragment> subject
// spec §4.4.2 sends phase events on.
func EventSubject(prefix, plugin string, phase abi.Phase) string {
	return fmt.Sprintf("%s.%s.%s", prefix, plugin, phase.Fragment())
}

// LifecycleSubject is used for initialize/shutdown, which are not
// phase-scoped.
func LifecycleSubject(prefix, plugin string) string {
	return fmt.Sprintf("%s.%s.lifecycle", prefix, plugin)
}

// ReplySubject builds the per-session reply inbox spec §4.4.2 requires
// be subscribed before the first send.
func ReplySubject(prefix, plugin string, sessionID uint32) string {
	return fmt.Sprintf("%s.%s.reply.%d", prefix, plugin, sessionID)
}
