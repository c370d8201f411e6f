// Package dialogue renders records and questions into the role-tagged prompt
// grammar the tuned models were trained on, and extracts the assistant
// segment back out of generated text.
//
// A prompt looks like:
//
//	<|system|>
//	product_name: Portable Projector
//	price: $199
//	<|end|>
//	<|user|>
//	How much is it?<|end|>
//	<|assistant|>
//
// Training prompts close the assistant segment with <|end|> and terminate
// the document with <|endoftext|>.
package dialogue

import (
	"fmt"
	"strings"

	"ecom-support/internal/domain/entity"
)

const (
	SystemMarker    = "<|system|>"
	UserMarker      = "<|user|>"
	AssistantMarker = "<|assistant|>"
	EndMarker       = "<|end|>"
	EndOfText       = "<|endoftext|>"
)

// SpecialTokens lists the role and terminator markers a tokenizer must keep
// as atomic tokens.
func SpecialTokens() []string {
	return []string{SystemMarker, UserMarker, AssistantMarker, EndMarker}
}

// RenderInference renders a prompt that stops right after the assistant
// marker so the generator writes the answer.
func RenderInference(fields []entity.Field, question string) string {
	var sb strings.Builder
	writeContext(&sb, fields, question)
	sb.WriteString(AssistantMarker)
	return sb.String()
}

// RenderTraining renders a complete document. The assistant segment is only
// written when an answer is known.
func RenderTraining(fields []entity.Field, question string, answer *string) string {
	var sb strings.Builder
	writeContext(&sb, fields, question)
	if answer != nil {
		sb.WriteString(AssistantMarker + "\n")
		sb.WriteString(*answer)
		sb.WriteString(EndMarker + "\n")
	}
	sb.WriteString(EndOfText)
	return sb.String()
}

// Layout selects which record fields end up in the system segment.
type Layout int

const (
	// SharedLayout renders every record kind through the product key list,
	// which is the layout both tuned models were trained on. Fields a kind
	// does not have are absent and therefore skipped.
	SharedLayout Layout = iota
	// SchemaLayout renders each kind's own schema fields.
	SchemaLayout
)

var sharedKeys = []string{
	"product_name", "price", "warranty", "refundable",
	"inventory", "dimensions", "reviews", "description",
}

// ParseLayout maps a configuration value to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "shared":
		return SharedLayout, nil
	case "schema":
		return SchemaLayout, nil
	}
	return SharedLayout, fmt.Errorf("unknown prompt layout %q", s)
}

// Fields returns the fields of r this layout renders, in render order.
func (l Layout) Fields(r entity.Record) []entity.Field {
	fields := r.Fields()
	if l == SchemaLayout {
		return fields
	}
	byName := make(map[string]string, len(fields))
	for _, f := range fields {
		byName[f.Name] = f.Value
	}
	out := make([]entity.Field, 0, len(sharedKeys))
	for _, k := range sharedKeys {
		if v, ok := byName[k]; ok {
			out = append(out, entity.Field{Name: k, Value: v})
		}
	}
	return out
}

// InferencePrompt renders r with question injected as the user turn.
func (l Layout) InferencePrompt(r entity.Record, question string) string {
	return RenderInference(l.Fields(r), question)
}

// TrainingPrompt renders r with its own attached question and answer.
func (l Layout) TrainingPrompt(r entity.Record) string {
	question, answer := r.Dialogue()
	return RenderTraining(l.Fields(r), question, answer)
}

// InferencePrompt renders r in the shared layout.
func InferencePrompt(r entity.Record, question string) string {
	return SharedLayout.InferencePrompt(r, question)
}

// TrainingPrompt renders r in the shared layout.
func TrainingPrompt(r entity.Record) string {
	return SharedLayout.TrainingPrompt(r)
}

func writeContext(sb *strings.Builder, fields []entity.Field, question string) {
	sb.WriteString(SystemMarker + "\n")
	for _, f := range fields {
		if len(f.Value) == 0 {
			continue
		}
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(f.Value)
		sb.WriteString("\n")
	}
	sb.WriteString(EndMarker + "\n")
	sb.WriteString(UserMarker + "\n")
	sb.WriteString(question)
	sb.WriteString(EndMarker + "\n")
}
