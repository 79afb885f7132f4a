// Package objectkey builds the deterministic storage key layout of
// spec.md §3/§6: videos/{mentor}/{question}/{original|web|mobile}.mp4,
// videos/{mentor}/{question}/en.vtt, and the thumbnail layout.
package objectkey

import (
	"path"
	"strings"
	"time"
)

const videosPrefix = "videos"

// Prefix returns the shared prefix under which all of one answer's
// artifacts live.
func Prefix(mentorID, questionID string) string {
	return path.Join(videosPrefix, mentorID, questionID) + "/"
}

func Original(mentorID, questionID string) string {
	return path.Join(Prefix(mentorID, questionID), "original.mp4")
}

func Web(mentorID, questionID string) string {
	return path.Join(Prefix(mentorID, questionID), "web.mp4")
}

func Mobile(mentorID, questionID string) string {
	return path.Join(Prefix(mentorID, questionID), "mobile.mp4")
}

func VTT(mentorID, questionID string) string {
	return path.Join(Prefix(mentorID, questionID), "en.vtt")
}

// AllKeys returns the four recognized keys under an answer's prefix, in
// the order the dispatcher's atomic replace deletes them (spec.md §4.4 step 5).
func AllKeys(mentorID, questionID string) []string {
	return []string{
		Original(mentorID, questionID),
		Web(mentorID, questionID),
		Mobile(mentorID, questionID),
		VTT(mentorID, questionID),
	}
}

// Thumbnail returns the key for a mentor's thumbnail upload at the given
// instant, formatted ISO8601-compact per spec.md §6.
func Thumbnail(mentorID string, at time.Time) string {
	ts := at.UTC().Format("20060102T150405Z")
	return path.Join("mentor", "thumbnails", mentorID, ts, "thumbnail.png")
}

// URL joins the configured STATIC_URL_BASE with a storage key to produce
// the deterministic public URL persisted onto Answer/AnswerMedia entries
// (spec.md §6).
func URL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
