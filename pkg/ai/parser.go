package ai

import (
	"regexp"
	"strconv"
	"strings"
)

// NonConformingReason is the audit marker stored when the oracle ignored the
// requested format entirely.
const NonConformingReason = "format non-conforme"

var (
	labelPattern = regexp.MustCompile(`(?i)\b(note|feedback|points\s+forts|points\s+faibles)\s*:`)
	numberToken  = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)?`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// ParseReply extracts the four labelled fields from the oracle's free-text
// output. Each field is captured up to the next known label or end of text; a
// missing field stays empty rather than failing the parse. Only output that
// carries neither a note nor a feedback is rejected as non-conforming.
func ParseReply(model, raw string) Reply {
	reply := Reply{Model: model, Raw: raw}

	fields := extractFields(raw)
	noteSegment, hasNote := fields["note"]
	feedback, hasFeedback := fields["feedback"]

	if !hasNote && !hasFeedback {
		reply.Unparsed = &Unparsed{Reason: NonConformingReason}
		return reply
	}

	record := Record{
		Feedback:   feedback,
		Strengths:  fields["points forts"],
		Weaknesses: fields["points faibles"],
	}

	if hasNote {
		note, ok := parseNote(noteSegment)
		record.Note = note
		record.LowConfidence = !ok
	} else {
		record.LowConfidence = true
	}

	reply.Parsed = &record
	return reply
}

func extractFields(raw string) map[string]string {
	matches := labelPattern.FindAllStringSubmatchIndex(raw, -1)
	fields := make(map[string]string, len(matches))

	for i, match := range matches {
		name := normalizeLabel(raw[match[2]:match[3]])
		start := match[1]
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		// First occurrence wins when the oracle repeats a label.
		if _, seen := fields[name]; !seen {
			fields[name] = strings.TrimSpace(raw[start:end])
		}
	}

	return fields
}

func normalizeLabel(label string) string {
	return spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), " ")
}

// parseNote extracts the first numeric token of the note segment and clamps
// it to [0, MaxNote]. "17/20" parses as 17; "25/20" clamps to 20. The second
// return value is false when no numeric token was found.
func parseNote(segment string) (float64, bool) {
	token := numberToken.FindString(segment)
	if token == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", "."), 64)
	if err != nil {
		return 0, false
	}

	if value < 0 {
		return 0, true
	}
	if value > MaxNote {
		return MaxNote, true
	}

	return value, true
}
