package agent

import (
	"bytes"
	"encoding/json"
	"strings"

	"hearing-intake/internal/consultation"
)

// extractJSONObject pulls the outermost JSON object out of a model reply,
// dropping markdown fences and any prose around it.
func extractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "```") {
		rest := strings.TrimSpace(strings.TrimPrefix(raw, "```"))
		if i := strings.Index(rest, "\n"); i >= 0 {
			rest = rest[i+1:]
		} else {
			rest = strings.TrimPrefix(rest, "json")
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		raw = strings.TrimSpace(rest)
	}
	i := strings.Index(raw, "{")
	j := strings.LastIndex(raw, "}")
	if i < 0 || j <= i {
		return ""
	}
	return raw[i : j+1]
}

// parsePatch decodes a model reply into a patch. Fields with the wrong
// shape are dropped and named in Anomalies; the rest of the object is still
// used. ok is false only when no JSON object could be read at all.
//
// Only intake facts are read. Keys for reserved chart fields, such as
// medications or suspected_diagnosis, are ignored.
func parsePatch(reply string) (*consultation.Patch, bool) {
	obj := extractJSONObject(reply)
	if obj == "" {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, false
	}

	p := &consultation.Patch{}
	d := fieldDecoder{fields: fields, patch: p}

	p.Name = d.scalar("name")
	p.Age = d.scalar("age")
	p.Gender = d.scalar("gender")
	p.ChiefComplaint = d.scalar("chief_complaint")
	p.Onset = d.scalar("onset")
	p.Duration = d.scalar("duration")
	p.Severity = d.scalar("severity")
	p.AffectedSide = d.scalar("affected_side")
	p.Progression = d.scalar("progression")

	p.Symptoms = d.list("symptoms")
	p.AdditionalSymptoms = d.list("additional_symptoms")
	p.MedicalHistory = d.list("medical_history")

	return p, true
}

type fieldDecoder struct {
	fields map[string]json.RawMessage
	patch  *consultation.Patch
}

func (d fieldDecoder) value(key string) (any, bool) {
	raw, ok := d.fields[key]
	if !ok {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		d.anomaly(key)
		return nil, false
	}
	return v, v != nil
}

// scalar accepts a string or a number. Numbers keep their literal form.
func (d fieldDecoder) scalar(key string) *string {
	v, ok := d.value(key)
	if !ok {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	default:
		d.anomaly(key)
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

// list accepts an array of strings. Non-string items are dropped.
func (d fieldDecoder) list(key string) []string {
	v, ok := d.value(key)
	if !ok {
		return nil
	}
	arr, isArr := v.([]any)
	if !isArr {
		d.anomaly(key)
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, isStr := item.(string)
		if !isStr {
			d.anomaly(key)
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (d fieldDecoder) anomaly(key string) {
	d.patch.Anomalies = append(d.patch.Anomalies, key)
}
