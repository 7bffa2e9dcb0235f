package model

import (
	"encoding/json"
	"time"
)

// StoryMeta is the single introspected shape inside an otherwise opaque
// iNewsStory payload. Everything else about the story is treated as a byte
// blob: the differ compares stories by Locator only, never by deep payload
// equality, so an implementation can keep the rest of the payload as bytes
// or as a parsed tree without the core caring either way.
type StoryMeta struct {
	// Float marks a story as a floated placeholder rather than a segment
	// that will actually air. Floated stories are dropped by the resolver
	// before rundown partitioning.
	Float bool `json:"float"`
}

// StoryPayload is the opaque iNewsStory blob. Raw is kept verbatim so
// downstream consumers (a real story-body parser, out of scope for this
// gateway) can reinterpret it; Meta is the one field this gateway itself
// looks at.
type StoryPayload struct {
	Raw  json.RawMessage `json:"-"`
	Meta StoryMeta       `json:"meta"`
}

// UnrankedSegment is a story as fetched from the NRCS, before it has been
// assigned a rank. It is the cache entry type for iNewsDataCache.
type UnrankedSegment struct {
	SegmentID  SegmentID
	RundownID  RundownID // current owning rundown, before resolution
	Name       string
	Modified   time.Time
	Locator    string // opaque version token, advanced whenever the body changes
	INewsStory StoryPayload
}
