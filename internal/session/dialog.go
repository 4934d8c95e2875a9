package session

// Confirmer answers yes/no questions before destructive operations run.
// A declined question cancels the operation without error.
type Confirmer interface {
	Confirm(question string) bool
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(question string) bool

// Confirm implements Confirmer.
func (f ConfirmerFunc) Confirm(question string) bool { return f(question) }

// Prompter asks the user for a line of text, seeded with an initial value.
// The second return is false when the user cancels.
type Prompter interface {
	PromptText(label, initial string) (string, bool)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(label, initial string) (string, bool)

// PromptText implements Prompter.
func (f PrompterFunc) PromptText(label, initial string) (string, bool) { return f(label, initial) }
