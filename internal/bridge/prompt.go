package bridge

import (
	"strings"

	"litertd/pkg/types"
)

// flattenMessages collapses a role-tagged transcript into the flat prompt
// the native engine expects. Text parts are concatenated per message; media
// parts contribute nothing here (they are attached to the session by the
// preprocessor). A trailing model cue invites the next assistant turn.
func flattenMessages(messages []types.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		text := msg.Text()
		if strings.TrimSpace(text) == "" && msg.Role != types.RoleAssistant {
			continue
		}
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	sb.WriteString(string(types.RoleAssistant))
	sb.WriteString(":")
	return sb.String()
}
