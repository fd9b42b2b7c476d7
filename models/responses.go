package models

type Model_Response struct {
	Parts []Model_Part `json:"parts"`
}

// A part is either plain text or a function call.

type FunctionCall struct {
	ID   string                 `json:"id,omitempty"` // Unique ID for this specific call instance
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type Model_Part struct {
	Text         *string       `json:"text,omitempty"`
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
}

// Text concatenates all text parts of the response.
func (r Model_Response) Text() string {
	var out string
	for _, part := range r.Parts {
		if part.Text != nil {
			out += *part.Text
		}
	}
	return out
}

// FunctionCalls returns every function call part, in the order the
// backend issued them.
func (r Model_Response) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, part := range r.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, *part.FunctionCall)
		}
	}
	return calls
}
