package session

import "strconv"

// Option identifies one of the configurable generation settings.
type Option int

const (
	// OptionContextWindow controls how many trailing messages are sent as
	// conversation history with each request.
	OptionContextWindow Option = iota
	// OptionNamingPrompt is the template used to auto-name a chat after its
	// first exchange. The response text replaces the [n] placeholder.
	OptionNamingPrompt
	// OptionTemperature is the sampling temperature. A negative value means
	// the provider default.
	OptionTemperature
	// OptionSystemInstruction is an optional system prompt sent with every
	// request. Blank means none.
	OptionSystemInstruction
)

// Persisted option keys.
const (
	keyContextWindow     = "numRememberPreviousMessages"
	keyNamingPrompt      = "chatNamePrompt"
	keyTemperature       = "temperature"
	keySystemInstruction = "systemInstruction"
)

// Default option values. All options are stored as strings.
const (
	DefaultContextWindow     = "5"
	DefaultNamingPrompt      = "Summarize into a maximum of 5 words: [n]"
	DefaultTemperature       = "-0.1"
	DefaultSystemInstruction = ""
)

// Key returns the persisted key for the option.
func (o Option) Key() string {
	switch o {
	case OptionContextWindow:
		return keyContextWindow
	case OptionNamingPrompt:
		return keyNamingPrompt
	case OptionTemperature:
		return keyTemperature
	case OptionSystemInstruction:
		return keySystemInstruction
	}
	return ""
}

// OptionFromKey resolves a persisted key back to its Option.
func OptionFromKey(key string) (Option, bool) {
	switch key {
	case keyContextWindow:
		return OptionContextWindow, true
	case keyNamingPrompt:
		return OptionNamingPrompt, true
	case keyTemperature:
		return OptionTemperature, true
	case keySystemInstruction:
		return OptionSystemInstruction, true
	}
	return 0, false
}

// Options holds the generation settings. Values are kept as strings so that
// unparseable input degrades to a defined fallback instead of being rejected
// at entry.
type Options struct {
	ContextWindow     string
	NamingPrompt      string
	Temperature       string
	SystemInstruction string
}

// DefaultOptions returns the factory settings.
func DefaultOptions() Options {
	return Options{
		ContextWindow:     DefaultContextWindow,
		NamingPrompt:      DefaultNamingPrompt,
		Temperature:       DefaultTemperature,
		SystemInstruction: DefaultSystemInstruction,
	}
}

// OptionsFromMap builds Options from a persisted key/value map. Missing keys
// fall back to their defaults; unknown keys are ignored.
func OptionsFromMap(m map[string]string) Options {
	o := DefaultOptions()
	if v, ok := m[keyContextWindow]; ok {
		o.ContextWindow = v
	}
	if v, ok := m[keyNamingPrompt]; ok {
		o.NamingPrompt = v
	}
	if v, ok := m[keyTemperature]; ok {
		o.Temperature = v
	}
	if v, ok := m[keySystemInstruction]; ok {
		o.SystemInstruction = v
	}
	return o
}

// Map returns the options as a persistable key/value map.
func (o Options) Map() map[string]string {
	return map[string]string{
		keyContextWindow:     o.ContextWindow,
		keyNamingPrompt:      o.NamingPrompt,
		keyTemperature:       o.Temperature,
		keySystemInstruction: o.SystemInstruction,
	}
}

// Get returns the current value of a single option.
func (o Options) Get(opt Option) string {
	switch opt {
	case OptionContextWindow:
		return o.ContextWindow
	case OptionNamingPrompt:
		return o.NamingPrompt
	case OptionTemperature:
		return o.Temperature
	case OptionSystemInstruction:
		return o.SystemInstruction
	}
	return ""
}

// ContextWindowSize parses the context window option. Unparseable values
// yield 0, which the payload builder widens to the minimum window.
func (o Options) ContextWindowSize() int {
	n, err := strconv.Atoi(o.ContextWindow)
	if err != nil {
		return 0
	}
	return n
}

// TemperatureValue parses the temperature option. The second return is false
// when the value is unparseable or negative, meaning the provider default
// should be used.
func (o Options) TemperatureValue() (float64, bool) {
	t, err := strconv.ParseFloat(o.Temperature, 64)
	if err != nil || t < 0 {
		return 0, false
	}
	return t, true
}
