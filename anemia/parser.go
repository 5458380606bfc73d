package anemia

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meditech/hemascan/llm"
)

// rawReply mirrors the JSON schema the prompt demands. Unspecified fields
// keep zero values; the nested objects tolerate non-string leaves.
type rawReply struct {
	HemoglobinEstimate float64                    `json:"hemoglobin_estimate"`
	Stage              string                     `json:"stage"`
	Confidence         float64                    `json:"confidence"`
	Explanation        string                     `json:"explanation"`
	PerImageFindings   map[string]json.RawMessage `json:"per_image_findings"`
	AyurvedicInsights  map[string]json.RawMessage `json:"ayurvedic_insights"`
}

// ParseResponse turns a backend's free-form reply into a Result. The
// reply may wrap the JSON object in prose or markdown fences; the span
// between the first '{' and the last '}' is what gets decoded. A reply
// with no such span, or one whose span is not valid JSON, fails with a
// parse-classified *llm.Error so the orchestrator treats it exactly like
// an HTTP failure and moves to the next provider.
func ParseResponse(raw, providerName string) (*Result, error) {
	span, ok := extractJSON(raw)
	if !ok {
		return nil, &llm.Error{
			Code:     llm.ErrParse,
			Message:  "parse failed: reply contains no JSON object",
			Provider: providerName,
		}
	}

	var reply rawReply
	if err := json.Unmarshal([]byte(span), &reply); err != nil {
		return nil, &llm.Error{
			Code:     llm.ErrParse,
			Message:  "parse failed: " + err.Error(),
			Provider: providerName,
		}
	}

	stage, ok := matchStage(reply.Stage)
	if !ok {
		stage = ClassifyByHemoglobin(reply.HemoglobinEstimate)
	}

	return &Result{
		ID:                 uuid.NewString(),
		HemoglobinEstimate: reply.HemoglobinEstimate,
		Stage:              stage,
		Confidence:         reply.Confidence,
		Explanation:        reply.Explanation,
		PerImageFindings:   flatten(reply.PerImageFindings),
		AyurvedicInsights:  flatten(reply.AyurvedicInsights),
		ProviderUsed:       providerName,
		Timestamp:          time.Now().UTC(),
	}, nil
}

// extractJSON returns the substring from the first '{' to the last '}'
// inclusive. Models wrap their object in fences or commentary often
// enough that anything outside the braces is discarded unseen.
func extractJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// matchStage resolves a stage label case-insensitively against the closed
// set. Unknown or empty labels report false so the caller can fall back
// to threshold classification.
func matchStage(label string) (Stage, bool) {
	candidate := Stage(strings.ToUpper(strings.TrimSpace(label)))
	for _, s := range Stages {
		if candidate == s {
			return s, true
		}
	}
	return StageUnknown, false
}

// ClassifyByHemoglobin maps a hemoglobin estimate (g/dL) onto the WHO
// bands. Non-positive values classify as UNKNOWN: the model gave us no
// usable number.
func ClassifyByHemoglobin(hb float64) Stage {
	switch {
	case hb >= 12.0:
		return StageNormal
	case hb >= 11.0:
		return StageMild
	case hb >= 8.0:
		return StageModerate
	case hb > 0:
		return StageSevere
	default:
		return StageUnknown
	}
}

// flatten reduces a nested JSON object to string values. Quoted leaves
// lose their quotes; anything else (numbers, arrays, null) keeps its raw
// form, with null becoming "".
func flatten(fields map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(fields))
	for key, value := range fields {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			out[key] = s
			continue
		}
		raw := strings.TrimSpace(string(value))
		if raw == "null" {
			raw = ""
		}
		out[key] = raw
	}
	return out
}
