package app

import "medword/internal/model"

// pairHistory rebuilds the role-alternating history from a session's
// messages, read two at a time. A trailing message without its partner is
// left out so the backend never sees two turns of the same role in a row.
func pairHistory(messages []model.ChatMessage) []model.HistoryTurn {
	turns := make([]model.HistoryTurn, 0, len(messages)&^1)
	for i := 0; i+1 < len(messages); i += 2 {
		turns = append(turns, historyTurn(messages[i]), historyTurn(messages[i+1]))
	}
	return turns
}

func historyTurn(m model.ChatMessage) model.HistoryTurn {
	role := model.RoleAssistant
	if m.IsUser {
		role = model.RoleUser
	}
	return model.HistoryTurn{Role: role, Content: m.Content}
}
