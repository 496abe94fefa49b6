package feed

// Wire types for the scoreboard/summary API. Only the fields the pipeline
// needs are declared; everything else in the upstream payload is ignored.

type scoreboardResponse struct {
	Events []scoreboardEvent `json:"events"`
}

type scoreboardEvent struct {
	ID           string         `json:"id"`
	Status       eventStatus    `json:"status"`
	Competitions []competition  `json:"competitions"`
}

type eventStatus struct {
	Period       int         `json:"period"`
	DisplayClock string      `json:"displayClock"`
	Type         statusType  `json:"type"`
}

type statusType struct {
	State string `json:"state"` // "pre", "in", "post"
}

type competition struct {
	Competitors []competitor `json:"competitors"`
}

type competitor struct {
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
	Team     team   `json:"team"`
}

type team struct {
	Abbreviation string `json:"abbreviation"`
}

type summaryResponse struct {
	Drives         drives        `json:"drives"`
	WinProbability []winProbTick `json:"winprobability"`
}

type drives struct {
	Previous []drive `json:"previous"`
	Current  *drive  `json:"current"`
}

type drive struct {
	ID    string     `json:"id"`
	Plays []wirePlay `json:"plays"`
}

type wirePlay struct {
	ID          string        `json:"id"`
	Period      wirePeriod    `json:"period"`
	Clock       wireClock     `json:"clock"`
	Text        string        `json:"text"`
	Type        wirePlayType  `json:"type"`
	StatYardage int           `json:"statYardage"`
	ScoringPlay bool          `json:"scoringPlay"`
	HomeScore   int           `json:"homeScore"`
	AwayScore   int           `json:"awayScore"`
	Start       *playSituation `json:"start"`
}

type wirePeriod struct {
	Number int `json:"number"`
}

type wireClock struct {
	DisplayValue string `json:"displayValue"`
}

type wirePlayType struct {
	Text string `json:"text"`
}

type playSituation struct {
	Down           int `json:"down"`
	Distance       int `json:"distance"`
	YardLine       int `json:"yardLine"`
	YardsToEndzone int `json:"yardsToEndzone"`
}

type winProbTick struct {
	PlayID             string  `json:"playId"`
	HomeWinPercentage  float64 `json:"homeWinPercentage"`
	SecondsLeft        int     `json:"secondsLeft"`
}
