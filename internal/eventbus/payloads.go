package eventbus

// CampaignPayload rides on CampaignStarted and CampaignFinished events.
type CampaignPayload struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Contacts   int    `json:"contacts"`
	FirstRun   string `json:"first_run,omitempty"` // HH:MM of the id's first execution
	Sent       int    `json:"sent,omitempty"`
	Failed     int    `json:"failed,omitempty"`
	Skipped    int    `json:"skipped,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// WritebackPayload rides on WritebackFailed events.
type WritebackPayload struct {
	ID    string `json:"id"`
	Row   int    `json:"row"`
	Error string `json:"error"`
}
