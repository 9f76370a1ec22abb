package config

import "time"

const (
	// DefaultAutosaveDebounce is the quiet period after the last edit before
	// an autosave is issued.
	DefaultAutosaveDebounce = 1200 * time.Millisecond

	// DefaultSavedDisplay is how long the "saved" status is shown before it
	// decays back to idle.
	DefaultSavedDisplay = 3 * time.Second

	// DefaultSSEIdleTimeout closes a push channel that has sent nothing,
	// not even a keep-alive comment, for this long.
	DefaultSSEIdleTimeout = 45 * time.Second

	// DefaultHTTPMaxRetries bounds retries of rate-limited (429) requests.
	DefaultHTTPMaxRetries = 3
)

const (
	// MaxChapterTitleLength is the maximum length for chapter titles.
	// Limited to 255 to fit the backend's VARCHAR(255).
	MaxChapterTitleLength = 255

	// MaxOutlineTitleLength is the maximum length for outline node titles.
	MaxOutlineTitleLength = 255

	// MaxPlotTitleLength is the maximum length for arc and point titles.
	MaxPlotTitleLength = 255

	// MinTension and MaxTension bound a plot point's tension value.
	MinTension = 0
	MaxTension = 10

	// MaxSuggestionCount bounds how many drafts one suggestion request may ask for.
	MaxSuggestionCount = 10
)
