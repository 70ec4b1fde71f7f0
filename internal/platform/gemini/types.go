package gemini

// promptData is passed to the prompt template
type promptData struct {
	Subject    string
	Topic      string
	Difficulty int
	Count      int
	Tags       []string
	Avoid      []string
}

// ResponseSchema is the JSON document the model is asked to return
type ResponseSchema struct {
	Items []ItemSchema `json:"items"`
}

// ItemSchema is a single practice item in the model response
type ItemSchema struct {
	// Question is the exercise shown to the learner
	Question string `json:"question"`

	// Answer is the expected answer
	Answer string `json:"answer"`

	// Choices are optional multiple-choice options
	Choices []string `json:"choices,omitempty"`

	// Tags are optional labels for the item
	Tags []string `json:"tags,omitempty"`
}
