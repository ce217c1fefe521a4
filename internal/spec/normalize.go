package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Normalize converts a raw persona definition into a canonical
// Specification. It is total: any input produces a complete spec, with
// defaults filling absent fields and invalid enum values silently
// replaced. Strictness is the validate package's job, not this one's.
//
// A zero now means time.Now; pass a fixed time for deterministic output.
func Normalize(raw map[string]any, now time.Time) Specification {
	if now.IsZero() {
		now = time.Now()
	}
	ts := now.UTC().Format(TimestampFormat)

	name := stringOr(raw, "name", "Unnamed")

	return Specification{
		SpecVersion: SpecVersion,
		Persona: Persona{
			Name:        name,
			Slug:        Slugify(name),
			Role:        stringOr(raw, "role", "AI Assistant"),
			Description: stringOr(raw, "description", fmt.Sprintf("%s is an AI assistant.", name)),
		},
		Personality: Personality{
			Traits:             listOr(raw, "traits"),
			CommunicationStyle: stringOr(raw, "communication_style", "clear and helpful"),
			Tone:               enumOr(raw, "tone", ValidTones, ToneProfessional),
			Formality:          enumOr(raw, "formality", ValidFormality, FormalitySemiFormal),
		},
		Knowledge: Knowledge{
			// knowledge_domains is the canonical key; domains is accepted
			// as a fallback for hand-written definitions.
			Domains:        listOr(raw, "knowledge_domains", "domains"),
			ExpertiseLevel: enumOr(raw, "expertise_level", ValidExpertiseLevels, ExpertiseExpert),
			Limitations:    listOr(raw, "limitations"),
		},
		Behavior: Behavior{
			Greeting:          stringOr(raw, "greeting", fmt.Sprintf("Hi! I'm %s. How can I help you today?", name)),
			Fallback:          stringOr(raw, "fallback", "I'm not sure about that. Let me connect you with someone who can help."),
			EscalationTrigger: stringOr(raw, "escalation_trigger", "Request to speak with a human"),
			ResponseLength:    enumOr(raw, "response_length", ValidResponseLengths, LengthConcise),
		},
		Guardrails: Guardrails{
			ForbiddenTopics:   listOr(raw, "forbidden_topics"),
			PIIHandling:       PIIHandling(stringOr(raw, "pii_handling", string(PIINeverStore))),
			MaxResponseTokens: intOr(raw, "max_response_tokens", 1024),
		},
		Metadata: Metadata{
			CreatedAt: ts,
			UpdatedAt: ts,
			Author:    stringOr(raw, "author", "system"),
			Notes:     listOr(raw, "notes"),
		},
	}
}

// LoadRaw reads a persona definition file (YAML or JSON) into the raw map
// form Normalize accepts. A leading ~ expands to the home directory.
func LoadRaw(path string) (map[string]any, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona definition: %w", err)
	}

	raw := map[string]any{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse persona definition: %w", err)
		}
		return raw, nil
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse persona definition: %w", err)
	}
	return raw, nil
}

// stringOr returns the string at key, or fallback when the key is absent
// or holds a non-string. A present empty string is preserved so that
// validation can flag it.
func stringOr(raw map[string]any, key, fallback string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

// enumOr returns the value at key when it belongs to the valid set,
// otherwise fallback. Invalid values are replaced silently.
func enumOr[E ~string](raw map[string]any, key string, valid map[E]bool, fallback E) E {
	s, ok := raw[key].(string)
	if !ok {
		return fallback
	}
	if v := E(s); valid[v] {
		return v
	}
	return fallback
}

// listOr returns the first key that coerces to a non-empty list, or an
// empty (non-nil) slice. Strings are comma-split; list elements are
// trimmed and empties dropped.
func listOr(raw map[string]any, keys ...string) []string {
	for _, key := range keys {
		if vals := coerceList(raw[key]); len(vals) > 0 {
			return vals
		}
	}
	return []string{}
}

func coerceList(v any) []string {
	switch vals := v.(type) {
	case []string:
		out := make([]string, 0, len(vals))
		for _, s := range vals {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		parts := strings.Split(vals, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}

func intOr(raw map[string]any, key string, fallback int) int {
	switch n := raw[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		return fallback
	default:
		return fallback
	}
}
