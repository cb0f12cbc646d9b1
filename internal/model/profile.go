package model

// Profile carries the site-profile fields passed to the voice vendor as
// session variables on connect.
type Profile struct {
	UserID          string   `json:"user_id"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Email           string   `json:"email"`
	IsAuthenticated bool     `json:"is_authenticated"`
	CurrentCountry  string   `json:"current_country"`
	Interests       []string `json:"interests"`
	Timeline        string   `json:"timeline"`
	Budget          string   `json:"budget"`
}
