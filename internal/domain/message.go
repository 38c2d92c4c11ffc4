package domain

// Subscriber control message actions.
const ActionSetFilter = "setFilter"

// ClientMessage is a control frame sent by a subscriber. Unknown actions and
// unknown filter keys are ignored by the session.
type ClientMessage struct {
	Action string          `json:"action"`
	Filter *FilterCriteria `json:"filter"`
}
