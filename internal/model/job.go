package model

// Job is a fractional-executive listing as surfaced to the voice session.
// It is a pass-through shape from the job board; beyond presence of the
// identifying fields nothing is validated here.
type Job struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	IsRemote bool   `json:"isRemote"`
	DayRate  int    `json:"dayRate"`
	Currency string `json:"currency"`
	Slug     string `json:"slug"`
}

// Presentable reports whether the listing has enough identity to display.
func (j Job) Presentable() bool {
	return j.ID != 0 && j.Title != "" && j.Company != ""
}
