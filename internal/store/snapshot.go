package store

import (
	"encoding/json"
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/abhisek/tutord/internal/learner"
)

// FormatVersion is the version of the stored profile document. Readers accept
// any document with the same or an older major version.
const FormatVersion = "v1.0.0"

// document is the stored form of a profile.
type document struct {
	Format  string           `json:"format"`
	Profile *learner.Profile `json:"profile"`
}

// encodeProfile serializes p for storage.
func encodeProfile(p *learner.Profile) ([]byte, error) {
	b, err := json.Marshal(document{Format: FormatVersion, Profile: p})
	if err != nil {
		return nil, fmt.Errorf("marshal profile %q: %w", p.LearnerID, err)
	}
	return b, nil
}

// decodeProfile parses a stored document and stamps it with revision.
func decodeProfile(data []byte, revision int64) (*learner.Profile, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if err := checkFormat(doc.Format); err != nil {
		return nil, err
	}
	if doc.Profile == nil {
		return nil, fmt.Errorf("stored document has no profile")
	}
	doc.Profile.Fill()
	doc.Profile.Revision = revision
	return doc.Profile, nil
}

func checkFormat(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("stored profile has invalid format version %q", v)
	}
	if semver.Compare(semver.Major(v), semver.Major(FormatVersion)) > 0 {
		return fmt.Errorf("stored profile format %s is newer than supported %s", v, FormatVersion)
	}
	return nil
}

// eventDataToMap converts an event payload to map[string]any for JSON
// column storage.
func eventDataToMap(data any) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewEvent builds an event whose Data is the JSON object form of data.
func NewEvent(kind, topic string, data any) (Event, error) {
	m, err := eventDataToMap(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", kind, err)
	}
	return Event{Kind: kind, Topic: topic, Data: m}, nil
}
