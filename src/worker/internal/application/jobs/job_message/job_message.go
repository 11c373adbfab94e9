package job_message

type RunIdentifier struct {
	RunID string `json:"run_id"`
}
