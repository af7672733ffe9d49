package engine

import "errors"

// Sentinel errors crossing the engine boundary. Transports map ErrNotReady
// to service-unavailable and ErrEmptyGlossary to a client error; everything
// else local to one rebuild or one detection call is reported inside the
// operation's result value and never disturbs the published generation.
var (
	// ErrNotReady means a required artifact (embedding model, lemmatizer,
	// index, variant lookup) has not been loaded.
	ErrNotReady = errors.New("not ready")

	// ErrEmptyGlossary means a rebuild was requested with zero raw entries.
	ErrEmptyGlossary = errors.New("no glossary entries provided")
)
