package session

import "github.com/youruser/gemchat/internal/chat"

// models is the fixed catalog of completion models a chat can be bound to.
var models = []chat.ModelRef{
	{Key: "gemini-2.0-flash", Name: "2.0 Flash"},
	{Key: "gemini-2.0-flash-lite-preview-02-05", Name: "2.0 Flash-Lite Preview"},
	{Key: "gemini-1.5-flash", Name: "1.5 Flash"},
}

// Models returns the selectable model catalog.
func Models() []chat.ModelRef {
	out := make([]chat.ModelRef, len(models))
	copy(out, models)
	return out
}

// ModelByKey looks a model up in the catalog.
func ModelByKey(key string) (chat.ModelRef, bool) {
	for _, m := range models {
		if m.Key == key {
			return m, true
		}
	}
	return chat.ModelRef{}, false
}
