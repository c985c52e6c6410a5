package conversation

import (
	"encoding/json"
	"strings"
)

// decisionPayload is the decision-shaped record the assistant is asked to
// produce. The handover action arrives under three spellings in the wild;
// priority is handover > handoverAction > handover_action, first non-empty.
type decisionPayload struct {
	Reply             string          `json:"reply"`
	Handover          string          `json:"handover"`
	HandoverCamel     string          `json:"handoverAction"`
	HandoverSnake     string          `json:"handover_action"`
	AgentPrompt       string          `json:"agent_prompt"`
	AgentPromptCamel  string          `json:"agentPrompt"`
	ReservaConfirmada bool            `json:"reserva_confirmada"`
	Details           json.RawMessage `json:"details"`

	// Reservation fields from the structured-output schema.
	NomeCompleto string `json:"nomeCompleto"`
	QtdPessoas   *int   `json:"qtdPessoas"`
	Data         string `json:"data"`
	Hora         string `json:"hora"`
}

func (p decisionPayload) handoverValue() string {
	for _, candidate := range []string{p.Handover, p.HandoverCamel, p.HandoverSnake} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

func (p decisionPayload) agentPrompt() string {
	if strings.TrimSpace(p.AgentPrompt) != "" {
		return p.AgentPrompt
	}
	return p.AgentPromptCamel
}

// reservationFields collects the schema's typed reservation fields so a
// structured reply keeps its data even without an explicit details object.
func (p decisionPayload) reservationFields() map[string]any {
	fields := map[string]any{}
	if p.NomeCompleto != "" {
		fields["nomeCompleto"] = p.NomeCompleto
	}
	if p.QtdPessoas != nil {
		fields["qtdPessoas"] = *p.QtdPessoas
	}
	if p.Data != "" {
		fields["data"] = p.Data
	}
	if p.Hora != "" {
		fields["hora"] = p.Hora
	}
	return fields
}

// reservationMarker is the literal phrase the assistant emits when a
// reservation was recorded but the reply carries no JSON. Inherited trigger;
// broadening the list is a product decision, not a parsing fix.
const reservationMarker = "reserva registrada"

// summaryLabels are the transcript fields mined from a plain-text
// confirmation, scanned in this order.
var summaryLabels = []string{"Nome:", "Número de pessoas:", "Dia:", "Horário:"}

const genericReservationSummary = "Nova reserva registrada pelo assistente."

// ParseDecision turns a raw assistant reply into a normalized Decision.
// It returns the decision, the JSON substring it decoded (empty when the
// plain-text heuristic produced the decision), and whether parsing succeeded.
// On failure the caller must treat the raw text as an opaque reply.
func ParseDecision(raw string) (Decision, string, bool) {
	if candidate, ok := extractJSONObject(raw); ok {
		if decision, usable := decodeDecision(candidate); usable {
			return decision, candidate, true
		}
		// A fenced candidate can be malformed while the text still holds a
		// decodable brace span; retry on the widest span before giving up.
		if wide, ok := braceSpan(raw); ok && wide != candidate {
			if decision, usable := decodeDecision(wide); usable {
				return decision, wide, true
			}
		}
	}

	if decision, ok := heuristicDecision(raw); ok {
		return decision, "", true
	}

	return Decision{}, "", false
}

// extractJSONObject locates the most plausible JSON object substring:
// code-fence interior first, then the trimmed text itself, then the widest
// first-'{' to last-'}' span anywhere.
func extractJSONObject(raw string) (string, bool) {
	if idx := strings.Index(raw, "```"); idx >= 0 {
		inner := raw[idx+3:]
		if end := strings.Index(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		if span, ok := braceSpan(inner); ok {
			return span, true
		}
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, true
	}

	return braceSpan(raw)
}

func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// decodeDecision attempts a strict structural decode. A payload that decodes
// but carries no usable field is rejected so the heuristic gets its turn.
func decodeDecision(candidate string) (Decision, bool) {
	var payload decisionPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return Decision{}, false
	}

	handoverRaw := payload.handoverValue()
	if payload.Reply == "" && handoverRaw == "" && payload.agentPrompt() == "" && !payload.ReservaConfirmada {
		return Decision{}, false
	}

	var details map[string]any
	if len(payload.Details) > 0 {
		// Details are opaque; a decode failure here must not reject the decision.
		_ = json.Unmarshal(payload.Details, &details)
	}
	if len(details) == 0 {
		if fields := payload.reservationFields(); len(fields) > 0 {
			details = fields
		}
	}

	return Decision{
		Reply:                payload.Reply,
		Handover:             NormalizeHandover(handoverRaw),
		AgentPrompt:          payload.agentPrompt(),
		ReservationConfirmed: payload.ReservaConfirmada,
		Details:              details,
	}, true
}

// heuristicDecision recognizes a plain-text "reserva registrada" confirmation
// and synthesizes a confirm decision with an operator summary mined from the
// labeled fields in the text.
func heuristicDecision(raw string) (Decision, bool) {
	if !strings.Contains(strings.ToLower(raw), reservationMarker) {
		return Decision{}, false
	}

	var parts []string
	for _, label := range summaryLabels {
		value, ok := labeledValue(raw, label)
		if !ok {
			continue
		}
		parts = append(parts, strings.TrimSuffix(label, ":")+" "+value)
	}

	prompt := genericReservationSummary
	if len(parts) > 0 {
		prompt = "Nova reserva: " + strings.Join(parts, ", ") + "."
	}

	return Decision{
		Reply:                strings.TrimSpace(raw),
		Handover:             HandoverConfirm,
		AgentPrompt:          prompt,
		ReservationConfirmed: true,
	}, true
}

// labeledValue extracts the text following a label up to end-of-line.
func labeledValue(raw, label string) (string, bool) {
	idx := strings.Index(raw, label)
	if idx < 0 {
		return "", false
	}
	rest := raw[idx+len(label):]
	if nl := strings.IndexAny(rest, "\r\n"); nl >= 0 {
		rest = rest[:nl]
	}
	value := strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "."))
	if value == "" {
		return "", false
	}
	return value, true
}
