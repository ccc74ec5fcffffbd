// Package agent runs the tool-calling dialogue loop. The chat model picks
// one action per round as a JSON blob; the orchestrator executes it, feeds
// the observation back, and stops when the model gives a final answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mohammed-elhaj/hr-bot/internal/answer"
	"github.com/mohammed-elhaj/hr-bot/internal/history"
	"github.com/mohammed-elhaj/hr-bot/internal/llm"
	"github.com/mohammed-elhaj/hr-bot/internal/ticket"
	"github.com/mohammed-elhaj/hr-bot/internal/vacation"
)

// Canned replies shown to the user. Internal errors never leak past this
// package; the apology is the only failure surface the user sees.
const (
	ApologyReply       = "عذراً، حدث خطأ أثناء معالجة طلبك. الرجاء المحاولة مرة أخرى."
	AskEmployeeIDReply = "يرجى تقديم رقم الموظف الخاص بك للمتابعة"
)

// balanceKeywords trigger the employee-ID prompt when no ID accompanies
// the message. Matched as plain substrings of the lowercased input.
var balanceKeywords = []string{"رصيد اجازتي", "كم يوم باقي"}

// maxRounds bounds the reasoning loop; a model that never produces a final
// answer gets the apology instead of an infinite tool budget.
const maxRounds = 5

// Tool names the model may put in the action field.
const (
	actionFinal    = "Final Answer"
	actionPolicy   = "PolicyQuery"
	actionBalance  = "CheckVacationBalance"
	actionVacation = "CreateVacationRequest"
	actionSupport  = "CreateSupportTicket"
)

const systemPrompt = `أنت مساعد الموارد البشرية. لديك الأدوات التالية:

PolicyQuery: يستخدم للإجابة عن أسئلة سياسات الموارد البشرية. المدخلات: سؤال (نص باللغة العربية)
CheckVacationBalance: يتحقق من رصيد الإجازات. المدخلات: employee_id (نص)
CreateVacationRequest: ينشئ طلب إجازة. المدخلات: كائن يحتوي على employee_id و start_date (YYYY-MM-DD) و end_date (YYYY-MM-DD) و request_type ('سنوية'/'مرضية'/'طارئة')
CreateSupportTicket: ينشئ تذكرة دعم (بعد موافقة المستخدم). المدخلات: كائن يحتوي على employee_id و summary و description

استخدم تنسيق JSON لتحديد الأداة من خلال توفير مفتاح action (اسم الأداة) ومفتاح action_input (مدخلات الأداة).

القيم الصالحة لـ "action": "Final Answer" أو PolicyQuery أو CheckVacationBalance أو CreateVacationRequest أو CreateSupportTicket

قدم إجراءً واحداً فقط في كل رد، على الشكل التالي:

{
  "action": "TOOL_NAME",
  "action_input": "INPUT"
}

تعليمات مهمة:
1. تحقق من رصيد الإجازة قبل إنشاء طلب إجازة
2. احصل على موافقة صريحة قبل إنشاء تذكرة دعم
3. تأكد من صحة جميع التفاصيل قبل إنشاء أي تذكرة
4. استخدم المعلومات من سجل المحادثة عند توفرها

تنسيق التذاكر:
- تذاكر الدعم: ST-XXXX
- تذاكر الإجازة: VT-XXXX`

// actionSchema constrains the model to the one-action JSON blob. The input
// is a string; structured tools receive their object encoded inside it.
var actionSchema = &llm.Schema{
	Type: "object",
	Properties: map[string]llm.SchemaProperty{
		"action":       {Type: "string", Description: "اسم الأداة أو Final Answer"},
		"action_input": {Type: "string", Description: "مدخلات الأداة، نص أو كائن JSON مرمز كنص"},
	},
	Required: []string{"action", "action_input"},
}

// ChatClient is the completion side of the LLM service client.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []llm.Message, jsonSchema *llm.Schema) (string, error)
}

// PolicyAnswerer answers free-form policy questions over the document index.
type PolicyAnswerer interface {
	Answer(ctx context.Context, question string, collectionIDs []string) (answer.Result, error)
}

// Orchestrator wires the chat model to the HR tools and the per-employee
// conversation transcripts.
type Orchestrator struct {
	chat    ChatClient
	model   string
	policy  PolicyAnswerer
	ledger  *vacation.Ledger
	tickets *ticket.Registry
	history *history.Store
	logger  *slog.Logger
}

// New creates an Orchestrator over the given model and tool backends.
func New(chat ChatClient, model string, policy PolicyAnswerer, ledger *vacation.Ledger, tickets *ticket.Registry, hist *history.Store) *Orchestrator {
	return &Orchestrator{
		chat:    chat,
		model:   model,
		policy:  policy,
		ledger:  ledger,
		tickets: tickets,
		history: hist,
		logger:  slog.Default(),
	}
}

// decision is the one-action JSON blob the model emits each round.
type decision struct {
	Action      string          `json:"action"`
	ActionInput json.RawMessage `json:"action_input"`
}

// Respond runs the dialogue loop for one user message and returns the reply.
// Failures are logged and rendered as the apology; the caller always gets
// something to show the user.
func (o *Orchestrator) Respond(ctx context.Context, employeeID, message string) string {
	if employeeID == "" && asksAboutBalance(message) {
		return AskEmployeeIDReply
	}

	messages, err := o.buildMessages(employeeID, message)
	if err != nil {
		o.logger.Error("loading chat history", "employee_id", employeeID, "error", err)
		return ApologyReply
	}

	reply := o.run(ctx, messages)

	if employeeID != "" && reply != ApologyReply {
		if err := o.history.Append(employeeID, message, reply); err != nil {
			o.logger.Error("saving chat history", "employee_id", employeeID, "error", err)
		}
	}
	return reply
}

func asksAboutBalance(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range balanceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) buildMessages(employeeID, message string) ([]llm.Message, error) {
	messages := []llm.Message{{Role: "system", Content: systemPrompt}}

	if employeeID != "" {
		turns, err := o.history.Load(employeeID)
		if err != nil {
			return nil, err
		}
		for _, turn := range turns {
			role := "user"
			if turn.Type == history.TypeBot {
				role = "assistant"
			}
			messages = append(messages, llm.Message{Role: role, Content: turn.Content})
		}
	}

	who := employeeID
	if who == "" {
		who = "غير معروف"
	}
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("[المستخدم: %s]\n%s", who, message),
	})
	return messages, nil
}

func (o *Orchestrator) run(ctx context.Context, messages []llm.Message) string {
	for round := 0; round < maxRounds; round++ {
		raw, err := o.chat.Chat(ctx, o.model, messages, actionSchema)
		if err != nil {
			o.logger.Error("chat model call failed", "round", round, "error", err)
			return ApologyReply
		}

		var d decision
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			o.logger.Warn("unparseable action blob", "round", round, "raw", raw)
			messages = append(messages,
				llm.Message{Role: "assistant", Content: raw},
				llm.Message{Role: "user", Content: "الرد غير صالح. أعد الإجابة بكائن JSON يحتوي على action و action_input فقط."},
			)
			continue
		}

		if d.Action == actionFinal {
			return textInput(d.ActionInput)
		}

		observation := o.dispatch(ctx, d)
		o.logger.Info("tool call", "round", round, "action", d.Action)
		messages = append(messages,
			llm.Message{Role: "assistant", Content: raw},
			llm.Message{Role: "user", Content: "نتيجة الأداة:\n" + observation},
		)
	}

	o.logger.Warn("reasoning rounds exhausted")
	return ApologyReply
}

// dispatch executes one tool action and renders the observation the model
// sees next round. Tool failures become tagged observations, not errors;
// the model is expected to relay them to the user.
func (o *Orchestrator) dispatch(ctx context.Context, d decision) string {
	switch d.Action {
	case actionPolicy:
		return o.policyQuery(ctx, textInput(d.ActionInput))
	case actionBalance:
		return o.checkBalance(d.ActionInput)
	case actionVacation:
		return o.createVacationRequest(d.ActionInput)
	case actionSupport:
		return o.createSupportTicket(d.ActionInput)
	default:
		return observe(map[string]string{
			"status": "error",
			"error":  "أداة غير معروفة: " + d.Action,
		})
	}
}

func (o *Orchestrator) policyQuery(ctx context.Context, question string) string {
	result, err := o.policy.Answer(ctx, question, nil)
	if err != nil {
		o.logger.Error("policy query failed", "error", err)
		return observe(map[string]string{
			"status": "error",
			"error":  "عذراً، حدث خطأ في معالجة السؤال.",
		})
	}
	return observe(map[string]string{
		"status": "success",
		"answer": result.Answer,
	})
}

func (o *Orchestrator) checkBalance(input json.RawMessage) string {
	var params struct {
		EmployeeID string `json:"employee_id"`
	}
	if err := decodeInput(input, &params); err != nil || params.EmployeeID == "" {
		params.EmployeeID = textInput(input)
	}

	account, err := o.ledger.CheckBalance(params.EmployeeID)
	switch {
	case errors.Is(err, vacation.ErrNotFound):
		return observe(map[string]string{
			"status": "not_found",
			"error":  "لم يتم العثور على الموظف",
		})
	case err != nil:
		o.logger.Error("balance check failed", "employee_id", params.EmployeeID, "error", err)
		return observe(map[string]string{
			"status": "error",
			"error":  "حدث خطأ في التحقق من الرصيد",
		})
	}
	return observe(map[string]any{
		"status":            "success",
		"employee_id":       params.EmployeeID,
		"name":              account.Name,
		"annual_balance":    account.AnnualBalance,
		"used_days":         account.UsedDays,
		"remaining_balance": account.RemainingBalance,
		"last_updated":      account.LastUpdated,
	})
}

func (o *Orchestrator) createVacationRequest(input json.RawMessage) string {
	var params struct {
		EmployeeID  string `json:"employee_id"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		RequestType string `json:"request_type"`
		Notes       string `json:"notes"`
	}
	if err := decodeInput(input, &params); err != nil {
		return observe(map[string]string{
			"status": "error",
			"error":  "مدخلات الطلب غير صالحة",
		})
	}

	t, err := o.tickets.CreateVacationTicket(params.EmployeeID, params.StartDate, params.EndDate, params.RequestType, params.Notes)
	if err != nil {
		o.logger.Error("creating vacation ticket failed", "employee_id", params.EmployeeID, "error", err)
		return observe(map[string]string{
			"status": "error",
			"error":  "حدث خطأ في إنشاء طلب الإجازة",
		})
	}
	return observe(map[string]string{
		"status":    "success",
		"message":   "تم إنشاء طلب الإجازة بنجاح",
		"ticket_id": t.TicketID,
	})
}

func (o *Orchestrator) createSupportTicket(input json.RawMessage) string {
	var params struct {
		EmployeeID  string `json:"employee_id"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
	}
	if err := decodeInput(input, &params); err != nil {
		return observe(map[string]string{
			"status": "error",
			"error":  "مدخلات التذكرة غير صالحة",
		})
	}

	t, err := o.tickets.CreateSupportTicket(params.EmployeeID, params.Summary, params.Description)
	if err != nil {
		o.logger.Error("creating support ticket failed", "employee_id", params.EmployeeID, "error", err)
		return observe(map[string]string{
			"status": "error",
			"error":  "حدث خطأ في إنشاء تذكرة الدعم",
		})
	}
	return observe(map[string]string{
		"status":    "success",
		"message":   "تم إنشاء تذكرة الدعم بنجاح",
		"ticket_id": t.TicketID,
	})
}

// textInput returns the action input as plain text, whether the model sent
// a JSON string or bare text.
func textInput(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// decodeInput parses a structured tool input. Models following the schema
// send the object encoded inside a JSON string; some send it directly.
func decodeInput(raw json.RawMessage, v any) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return json.Unmarshal([]byte(s), v)
	}
	return json.Unmarshal(raw, v)
}

func observe(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"status":"error"}`
	}
	return string(data)
}
