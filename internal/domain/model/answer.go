package model

import "errors"

// MediaType classifies an AnswerMedia entry.
type MediaType string

const (
	MediaTypeVideo     MediaType = "video"
	MediaTypeSubtitles MediaType = "subtitles"
)

// MediaTag identifies the role an AnswerMedia entry plays.
type MediaTag string

const (
	MediaTagOriginal MediaTag = "original"
	MediaTagWeb      MediaTag = "web"
	MediaTagMobile   MediaTag = "mobile"
	MediaTagEnglish  MediaTag = "en"
)

// AnswerMedia is one tagged media artifact belonging to an Answer.
// The pair (Type, Tag) is unique within an Answer.
type AnswerMedia struct {
	Type          MediaType `json:"type"`
	Tag           MediaTag  `json:"tag"`
	URL           string    `json:"url"`
	NeedsTransfer bool      `json:"needsTransfer"`
}

// Answer is the metadata entity keyed by (MentorID, QuestionID).
type Answer struct {
	MentorID            string        `json:"mentor"`
	QuestionID          string        `json:"question"`
	Transcript          string        `json:"transcript"`
	HasEditedTranscript bool          `json:"hasEditedTranscript"`
	Media               []AnswerMedia `json:"media"`
}

var ErrMediaNotFound = errors.New("media not found")

// MediaByTag returns the entry matching (type, tag), if present.
func (a *Answer) MediaByTag(t MediaType, tag MediaTag) (AnswerMedia, bool) {
	for _, m := range a.Media {
		if m.Type == t && m.Tag == tag {
			return m, true
		}
	}
	return AnswerMedia{}, false
}

// MergeMedia replaces entries sharing (Type, Tag) with the supplied ones,
// appending any that don't already exist. This is the client-side mirror
// of the metadata service's "merge by (type, tag)" rule (spec.md §4.5).
func MergeMedia(existing []AnswerMedia, patch []AnswerMedia) []AnswerMedia {
	out := make([]AnswerMedia, 0, len(existing)+len(patch))
	for _, e := range existing {
		replaced := false
		for _, p := range patch {
			if p.Type == e.Type && p.Tag == e.Tag {
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return append(out, patch...)
}
