package models

// Runtime event kinds appended to the runtime_events audit log.
// Writes are best-effort: a failed audit insert is logged and swallowed,
// never surfaced to the operation that triggered it.
const (
	EventKindMessageSent      = "message_sent"
	EventKindMessageClaimed   = "message_claimed"
	EventKindMessageCompleted = "message_completed"
	EventKindMessageFailed    = "message_failed"
	EventKindMessageOverdue   = "message_overdue"
	EventKindBudgetDecision   = "budget_decision"
	EventKindMemorySaved      = "memory_saved"
	EventKindPredictionLogged = "prediction_logged"
	EventKindPredictionScored = "prediction_scored"
	EventKindLoopStarted      = "loop_started"
	EventKindLoopStopped      = "loop_stopped"
)
