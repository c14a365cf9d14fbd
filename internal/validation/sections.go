package validation

import (
	"encoding/json"
	"strings"

	"portodas-api/internal/models"
)

var sharedSectionFields = map[string]bool{
	"id":        true,
	"type":      true,
	"order":     true,
	"isActive":  true,
	"createdAt": true,
	"updatedAt": true,
}

type sectionShared struct {
	Type     *string `json:"type"`
	Order    *int    `json:"order"`
	IsActive *bool   `json:"isActive"`
}

// DecodeSectionCreate dispatches on the body's type discriminator and
// validates the body against that kind's schema.
func DecodeSectionCreate(v *Validator, raw []byte) (models.SectionInput, Result) {
	var result Result
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		result.add(BodyField, "request body must be a JSON object")
		return models.SectionInput{}, result
	}
	discriminator, _ := fields["type"].(string)
	if strings.TrimSpace(discriminator) == "" {
		result.add("type", "type is required")
		return models.SectionInput{}, result
	}
	kind, ok := models.ParseSectionKind(discriminator)
	if !ok {
		result.add("type", "type must be one of: "+kindList())
		return models.SectionInput{}, result
	}
	if result = v.Check(sectionPrefix+string(kind), Create, raw); !result.Valid() {
		return models.SectionInput{}, result
	}
	var shared sectionShared
	if err := json.Unmarshal(raw, &shared); err != nil {
		result.add(BodyField, "request body must be a JSON object")
		return models.SectionInput{}, result
	}
	content, err := models.DecodeSectionContent(kind, raw)
	if err != nil {
		result.add(BodyField, "request body does not match the "+string(kind)+" section")
		return models.SectionInput{}, result
	}
	in := models.SectionInput{Content: content, Order: shared.Order}
	if shared.IsActive != nil {
		in.IsActive = *shared.IsActive
	}
	return in, result
}

// DecodeSectionUpdate validates a partial body against the schema of the
// stored section's kind. A body naming a different type is rejected.
func DecodeSectionUpdate(v *Validator, kind models.SectionKind, raw []byte) (models.SectionPatch, Result) {
	var result Result
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		result.add(BodyField, "request body must be a JSON object")
		return models.SectionPatch{}, result
	}
	if t, ok := fields["type"]; ok {
		if s, isString := t.(string); !isString || s != string(kind) {
			result.add("type", "section type cannot be changed")
			return models.SectionPatch{}, result
		}
	}
	if result = v.Check(sectionPrefix+string(kind), Update, raw); !result.Valid() {
		return models.SectionPatch{}, result
	}
	var shared sectionShared
	if err := json.Unmarshal(raw, &shared); err != nil {
		result.add(BodyField, "request body must be a JSON object")
		return models.SectionPatch{}, result
	}
	patch := models.SectionPatch{Fields: map[string]any{}, Order: shared.Order, IsActive: shared.IsActive}
	for key, value := range fields {
		if !sharedSectionFields[key] {
			patch.Fields[key] = value
		}
	}
	return patch, result
}

func kindList() string {
	names := make([]string, 0, len(models.SectionKinds))
	for _, kind := range models.SectionKinds {
		names = append(names, string(kind))
	}
	return strings.Join(names, ", ")
}
