package types

// JSON bodies served by the HTTP API.

type Highscore struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

type HighscoresResponse struct {
	Scores []Highscore `json:"scores"`
}

type LoggedInResponse struct {
	Users []string `json:"users"`
}

type StatsResponse struct {
	Questions   int `json:"questions"`
	Connections int `json:"connections"`
	LoggedIn    int `json:"logged_in"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
