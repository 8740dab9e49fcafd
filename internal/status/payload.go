package status

import (
	"encoding/json"
	"fmt"
)

type Class string

const (
	ClassBullish Class = "bullish"
	ClassBearish Class = "bearish"
	ClassNeutral Class = "neutral"
)

// Payload is the status-bar document served as StatusJson.
type Payload struct {
	Text    string `json:"text"`
	Alt     string `json:"alt"`
	Class   string `json:"class"`
	Tooltip string `json:"tooltip"`
}

// Classify splits on the sign of percentage.
func Classify(percentage float64) Class {
	switch {
	case percentage > 0:
		return ClassBullish
	case percentage < 0:
		return ClassBearish
	default:
		return ClassNeutral
	}
}

// Render builds the payload for an aggregate expressed as a fraction.
func Render(avgChange float64) Payload {
	percentage := avgChange * 100
	if percentage == 0 {
		// folds -0 into +0
		percentage = 0
	}
	class := string(Classify(percentage))
	return Payload{
		Text:    fmt.Sprintf("%+.2f%%", percentage),
		Alt:     class,
		Class:   class,
		Tooltip: fmt.Sprintf("Daily average: %.2f%%", percentage),
	}
}

func (p Payload) JSON() string {
	b, err := json.Marshal(p)
	if err != nil {
		// four strings always marshal
		return "{}"
	}
	return string(b)
}
