// Package parse holds the small text parsers used around the assistant:
// equipment tags, local datetimes and loosely formatted JSON.
package parse

import (
	"sort"
	"strings"
)

// Canonical equipment type codes.
const (
	CodeTV        = "TV"
	CodeProjector = "PRJ"
	CodeMic       = "MIC"
	CodeSpeaker   = "SPK"
	CodeCamera    = "CAM"
)

var tagCodes = map[string][]string{
	"tv":      {CodeTV},
	"screen":  {CodeTV},
	"monitor": {CodeTV},

	"projector": {CodeProjector},
	"may_chieu": {CodeProjector},

	"microphone": {CodeMic},
	"mic":        {CodeMic},
	"micro":      {CodeMic},

	"speaker": {CodeSpeaker},
	"loa":     {CodeSpeaker},

	"camera": {CodeCamera},
	"cam":    {CodeCamera},

	// online meetings need the full set
	"video_conference": {CodeCamera, CodeMic, CodeSpeaker},
	"zoom":             {CodeCamera, CodeMic, CodeSpeaker},
	"meet":             {CodeCamera, CodeMic, CodeSpeaker},
	"teams":            {CodeCamera, CodeMic, CodeSpeaker},
	"online":           {CodeCamera, CodeMic, CodeSpeaker},
}

// AllowedTags is the tag vocabulary offered to the language model.
var AllowedTags = []string{"tv", "projector", "microphone", "speaker", "camera", "video_conference"}

// EquipmentCodes maps free-form tags onto equipment type codes. Unknown tags
// are dropped. The result is sorted and free of duplicates.
func EquipmentCodes(tags []string) []string {
	seen := make(map[string]struct{})
	for _, t := range tags {
		for _, code := range tagCodes[strings.ToLower(strings.TrimSpace(t))] {
			seen[code] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
