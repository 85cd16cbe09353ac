package conversation

// Step is one utterance paired with the gesture played while it is spoken.
// Either half may be empty.
type Step struct {
	Utterance string `json:"utterance"`
	Gesture   string `json:"gesture"`
}

// Response is the scripted reply for a label.
type Response = Step

// Intro always opens a conversation.
var Intro = Step{
	Utterance: "Let me analyze this text for you.",
	Gesture:   "Wave",
}

var responses = map[Label]Response{
	LabelHateSpeech: {
		Utterance: "I have detected hate speech. This language is harmful and unacceptable.",
		Gesture:   "Angry",
	},
	LabelOffensiveLanguage: {
		Utterance: "This content seems to contain offensive language. It might be inappropriate for some audiences.",
		Gesture:   "Sad",
	},
	LabelNeither: {
		Utterance: "This content appears to be safe. Everything looks good!",
		Gesture:   "Happy",
	},
}

// ResponseFor returns the scripted reply for l. Unknown labels get an empty
// response: nothing is said and the gesture is left alone.
func ResponseFor(l Label) Response {
	return responses[l]
}

// Queue is consumed strictly front to back.
type Queue struct {
	steps []Step
}

func NewQueue(steps ...Step) *Queue {
	return &Queue{steps: append([]Step(nil), steps...)}
}

// BuildQueue returns the two-step script for l: the intro, then l's response.
func BuildQueue(l Label) *Queue {
	return NewQueue(Intro, ResponseFor(l))
}

// Next pops the front step.
func (q *Queue) Next() (Step, bool) {
	if len(q.steps) == 0 {
		return Step{}, false
	}
	s := q.steps[0]
	q.steps = q.steps[1:]
	return s, true
}

func (q *Queue) Len() int {
	return len(q.steps)
}

// Steps returns a copy of the steps not yet consumed.
func (q *Queue) Steps() []Step {
	return append([]Step(nil), q.steps...)
}
