// Package conversation sequences scripted speech and gestures in response to
// a classification label.
package conversation

import (
	"strings"
)

// Label is the classifier's verdict for a piece of text.
type Label string

const (
	LabelHateSpeech        Label = "hate_speech"
	LabelOffensiveLanguage Label = "offensive_language"
	LabelNeither           Label = "neither"
)

// Labels lists the labels with a scripted response, in class-id order.
var Labels = []Label{LabelHateSpeech, LabelOffensiveLanguage, LabelNeither}

// ParseLabel normalizes a label name or class id. Unrecognized input is
// returned as-is (trimmed, lower-cased) and reports false from Known.
func ParseLabel(s string) Label {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)

	switch norm {
	case "0", string(LabelHateSpeech), "hate":
		return LabelHateSpeech
	case "1", string(LabelOffensiveLanguage), "offensive":
		return LabelOffensiveLanguage
	case "2", string(LabelNeither), "none", "safe":
		return LabelNeither
	}
	return Label(norm)
}

// Known reports whether l has an entry in the response table.
func (l Label) Known() bool {
	_, ok := responses[l]
	return ok
}

func (l Label) String() string {
	return string(l)
}
