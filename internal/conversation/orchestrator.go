package conversation

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zapmesa/zapmesa/pkg/logging"
)

const defaultSystemPrompt = "Você é o assistente virtual de um estabelecimento que recebe reservas pelo WhatsApp. " +
	"Seja cordial, objetivo e responda sempre em português. " +
	"Para registrar uma reserva você precisa de: nome, número de pessoas, dia e horário. " +
	"Quando tiver todos os dados, use a ferramenta registrar_reserva. " +
	"Se o cliente pedir para falar com uma pessoa, use a ferramenta transferir_atendimento. " +
	"Quando não usar ferramentas, responda com um objeto JSON com os campos " +
	"reply, agentPrompt, nomeCompleto, qtdPessoas, data e hora; " +
	"preencha apenas reply quando os demais não se aplicarem."

const assistantFallbackReply = "Desculpe, tive um problema técnico agora. Pode tentar de novo em instantes?"

// assistantDegradedReply is the fixed answer when the assistant was never
// given credentials. Distinct from the apology so operators can tell a
// misconfiguration from a transient provider failure in the transcript.
const assistantDegradedReply = "O atendimento automático está temporariamente indisponível. " +
	"Deixe sua mensagem que retornaremos em breve."

var assistantTracer = otel.Tracer("zapmesa.internal.conversation.assistant")

// decisionResponseFormat constrains non-tool replies to the decision schema.
var decisionResponseFormat = &openai.ChatCompletionResponseFormat{
	Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
	JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
		Name: "assistant_decision",
		Schema: &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"reply":        {Type: jsonschema.String, Description: "Mensagem para o cliente"},
				"agentPrompt":  {Type: jsonschema.String, Description: "Resumo para o operador, quando houver"},
				"nomeCompleto": {Type: jsonschema.String},
				"qtdPessoas":   {Type: jsonschema.Integer},
				"data":         {Type: jsonschema.String},
				"hora":         {Type: jsonschema.String},
			},
			Required: []string{"reply"},
		},
	},
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIChatClient builds the OpenAI-backed chat client, or nil when no
// API key is configured so the orchestrator degrades without network calls.
func NewOpenAIChatClient(apiKey string) chatClient {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return openai.NewClient(apiKey)
}

// Orchestrator turns one user message plus conversation history into a
// Decision. It never returns an error: any failure along the way degrades
// into an apologetic decision so the user always hears something back.
type Orchestrator struct {
	client  chatClient
	tools   ToolExecutor
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

// NewOrchestrator returns an OpenAI-backed decision maker. A nil client
// means no credentials were configured; Decide then answers with a fixed
// degraded-service decision and never touches the network.
func NewOrchestrator(client chatClient, tools ToolExecutor, model string, timeout time.Duration, logger *logging.Logger) *Orchestrator {
	if tools == nil {
		tools = ReplyFormatter{}
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		client:  client,
		tools:   tools,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Decide runs the assistant for one turn.
func (o *Orchestrator) Decide(ctx context.Context, conv *Conversation, history []Message, text string) Decision {
	if o.client == nil {
		o.logger.Warn("assistant credentials missing, degraded reply", "conversation_id", conv.ID)
		return Decision{Reply: assistantDegradedReply, Handover: HandoverNone}
	}

	ctx, span := assistantTracer.Start(ctx, "conversation.decide")
	defer span.End()
	span.SetAttributes(
		attribute.String("zapmesa.conversation_id", conv.ID.String()),
		attribute.String("zapmesa.establishment_id", conv.EstablishmentID.String()),
	)

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: defaultSystemPrompt,
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:          o.model,
		Messages:       messages,
		Tools:          assistantTools(),
		ResponseFormat: decisionResponseFormat,
	})
	if err != nil {
		span.RecordError(err)
		o.logger.Error("assistant completion failed", "error", err, "conversation_id", conv.ID)
		return Decision{Reply: assistantFallbackReply, Handover: HandoverNone}
	}
	if len(resp.Choices) == 0 {
		o.logger.Error("assistant returned no choices", "conversation_id", conv.ID)
		return Decision{Reply: assistantFallbackReply, Handover: HandoverNone}
	}

	choice := resp.Choices[0].Message
	if len(choice.ToolCalls) > 0 {
		decision := o.decideFromToolCall(ctx, conv, choice.ToolCalls[0])
		span.SetAttributes(attribute.String("zapmesa.handover", string(decision.Handover)))
		return decision
	}

	content := strings.TrimSpace(choice.Content)
	if content == "" {
		o.logger.Warn("assistant returned empty content", "conversation_id", conv.ID)
		return Decision{Reply: assistantFallbackReply, Handover: HandoverNone}
	}

	decision, _, ok := ParseDecision(content)
	if !ok {
		// Unstructured output still reaches the user as plain text.
		o.logger.Info("assistant output not parseable as decision", "conversation_id", conv.ID)
		decision = Decision{Reply: content, Handover: HandoverNone}
	}
	span.SetAttributes(attribute.String("zapmesa.handover", string(decision.Handover)))
	return decision
}

func (o *Orchestrator) decideFromToolCall(ctx context.Context, conv *Conversation, call openai.ToolCall) Decision {
	name := call.Function.Name
	args := map[string]any{}
	if raw := call.Function.Arguments; raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			o.logger.Warn("failed to decode tool arguments",
				"error", err,
				"tool", name,
				"conversation_id", conv.ID,
			)
			args = map[string]any{}
		}
	}

	reply, err := o.tools.Execute(ctx, name, args)
	if err != nil {
		o.logger.Error("tool execution failed", "error", err, "tool", name, "conversation_id", conv.ID)
		return Decision{Reply: assistantFallbackReply, Handover: HandoverNone}
	}

	switch name {
	case ToolRegisterReservation:
		return Decision{
			Reply:                reply,
			Handover:             HandoverConfirm,
			AgentPrompt:          reservationAgentPrompt(args),
			ReservationConfirmed: true,
			Details:              args,
		}
	case ToolTransferToHuman:
		prompt := "Cliente pediu atendimento humano."
		if motivo := stringArg(args, "motivo"); motivo != "" {
			prompt = "Cliente pediu atendimento humano: " + motivo
		}
		args["transfer"] = true
		return Decision{
			Reply:       reply,
			Handover:    HandoverAsk,
			AgentPrompt: prompt,
			Details:     args,
		}
	default:
		return Decision{Reply: assistantFallbackReply, Handover: HandoverNone}
	}
}
