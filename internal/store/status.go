package store

import "database/sql"

// StatusCounts summarizes table populations for the status command.
type StatusCounts struct {
	MessagesPending    int64 `json:"messages_pending"`
	MessagesProcessing int64 `json:"messages_processing"`
	MessagesCompleted  int64 `json:"messages_completed"`
	MessagesFailed     int64 `json:"messages_failed"`
	PredictionsPending int64 `json:"predictions_pending"`
	PredictionsTotal   int64 `json:"predictions_total"`
	Budgets            int64 `json:"budgets"`
	MemoryRecords      int64 `json:"memory_records"`
	Capabilities       int64 `json:"capabilities"`
	RuntimeEvents      int64 `json:"runtime_events"`
}

// GetStatusCounts returns row counts across the core tables.
func GetStatusCounts(db *sql.DB) (*StatusCounts, error) {
	c := &StatusCounts{}

	byStatus := map[string]*int64{
		"pending":    &c.MessagesPending,
		"processing": &c.MessagesProcessing,
		"completed":  &c.MessagesCompleted,
		"failed":     &c.MessagesFailed,
	}
	rows, err := db.Query(`SELECT status, COUNT(*) FROM messages GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		if dst, ok := byStatus[status]; ok {
			*dst = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	singles := []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM predictions WHERE status = 'pending'`, &c.PredictionsPending},
		{`SELECT COUNT(*) FROM predictions`, &c.PredictionsTotal},
		{`SELECT COUNT(*) FROM budgets`, &c.Budgets},
		{`SELECT COUNT(*) FROM agent_memory`, &c.MemoryRecords},
		{`SELECT COUNT(*) FROM agent_capabilities`, &c.Capabilities},
		{`SELECT COUNT(*) FROM runtime_events`, &c.RuntimeEvents},
	}
	for _, s := range singles {
		if err := db.QueryRow(s.query).Scan(s.dst); err != nil {
			return nil, err
		}
	}

	return c, nil
}
