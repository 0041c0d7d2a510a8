package orchestratornode

// AppendUserTurn snapshots the bounded history before appending the new turn,
// so the current message is sent once, after the history.
func AppendUserTurn(in *GraphState, historyWindow int) (*GraphState, error) {
	if err := requireSession(in); err != nil {
		return nil, err
	}
	in.History = in.Manager.ConversationHistory(historyWindow)
	in.Manager.AddUserMessage(in.Text, map[string]string{"channel": in.Session.Channel})
	return in, nil
}
