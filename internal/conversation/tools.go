package conversation

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Tool names the assistant may call. Each maps onto one handover action: the
// orchestrator translates the call into a decision and the dispatcher applies
// the side effects, so tool execution itself never touches storage.
const (
	ToolRegisterReservation = "registrar_reserva"
	ToolTransferToHuman     = "transferir_atendimento"
)

func assistantTools() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolRegisterReservation,
				Description: "Registra uma reserva quando o cliente já informou nome, número de pessoas, dia e horário.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"nome":     map[string]any{"type": "string", "description": "Nome do cliente"},
						"pessoas":  map[string]any{"type": "string", "description": "Número de pessoas"},
						"dia":      map[string]any{"type": "string", "description": "Dia da reserva"},
						"horario":  map[string]any{"type": "string", "description": "Horário da reserva"},
						"detalhes": map[string]any{"type": "string", "description": "Observações adicionais"},
					},
					"required": []string{"nome", "pessoas", "dia", "horario"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolTransferToHuman,
				Description: "Transfere a conversa para um atendente humano quando o assistente não consegue resolver.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"motivo": map[string]any{"type": "string", "description": "Motivo da transferência"},
					},
					"required": []string{"motivo"},
				},
			},
		},
	}
}

// ToolExecutor renders the user-facing reply for a tool call. Implementations
// must be side-effect free: persistence happens later, in the dispatcher, so
// a crash between the call and the commit never leaves half-applied state.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// ReplyFormatter is the default ToolExecutor. It only formats text.
type ReplyFormatter struct{}

func (ReplyFormatter) Execute(_ context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolRegisterReservation:
		return formatReservationReply(args), nil
	case ToolTransferToHuman:
		return "Claro! Vou transferir você para um de nossos atendentes. Um momento, por favor.", nil
	default:
		return "", fmt.Errorf("conversation: unknown tool %q", name)
	}
}

func formatReservationReply(args map[string]any) string {
	b := strings.Builder{}
	b.WriteString("Perfeito")
	if nome := stringArg(args, "nome"); nome != "" {
		b.WriteString(", ")
		b.WriteString(nome)
	}
	b.WriteString("! Sua reserva está registrada:\n")
	for _, field := range [][2]string{
		{"pessoas", "Pessoas"},
		{"dia", "Dia"},
		{"horario", "Horário"},
	} {
		if v := stringArg(args, field[0]); v != "" {
			b.WriteString(fmt.Sprintf("- %s: %s\n", field[1], v))
		}
	}
	b.WriteString("Até breve!")
	return b.String()
}

// reservationAgentPrompt builds the operator-facing summary for a tool call.
func reservationAgentPrompt(args map[string]any) string {
	parts := []string{}
	for _, field := range [][2]string{
		{"nome", "Nome"},
		{"pessoas", "Pessoas"},
		{"dia", "Dia"},
		{"horario", "Horário"},
		{"detalhes", "Detalhes"},
	} {
		if v := stringArg(args, field[0]); v != "" {
			parts = append(parts, fmt.Sprintf("%s %s", field[1], v))
		}
	}
	if len(parts) == 0 {
		return genericReservationSummary
	}
	return "Nova reserva: " + strings.Join(parts, ", ") + "."
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

var _ ToolExecutor = ReplyFormatter{}
