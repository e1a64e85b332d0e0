package flatten

import "fmt"

// FatalInputError reports an input whose root is not a JSON array.
type FatalInputError struct {
	Type string
}

func (e *FatalInputError) Error() string {
	return fmt.Sprintf("input must be a JSON array of conversations, got %s", e.Type)
}

// ConversationParseError reports a conversation that could not be flattened.
// Index is the 1-based position of the conversation in the input.
type ConversationParseError struct {
	Index int
	Err   error
}

func (e *ConversationParseError) Error() string {
	return fmt.Sprintf("conversation %d: %v", e.Index, e.Err)
}

func (e *ConversationParseError) Unwrap() error {
	return e.Err
}
