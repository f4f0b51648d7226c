package service

import (
	"strings"

	"pocket-guard/internal/domain"
)

var (
	fallbackGeneric = []string{
		"I'm here to help with your money questions. Could you tell me a bit more about what you'd like to work on?",
		"Good question! A simple first step is to look at last month's spending and spot one category you could trim.",
		"Small, steady habits add up. Try setting aside a fixed amount right after payday, even if it's small.",
		"I hear you. Money can feel stressful, so let's take it one step at a time. What's your biggest concern right now?",
	}
	fallbackBudget = []string{
		"A budget that works is one you can stick to. Start with your fixed bills, then give every remaining rupee a job.",
		"Try the 50/30/20 idea as a starting point: needs, wants and savings. Then adjust it to fit your real life.",
	}
	fallbackSaving = []string{
		"Saving gets easier when it's automatic. A standing transfer on payday means you never have to decide again.",
		"Pick one goal with a date and an amount. Dividing it by the months left tells you exactly what to save.",
	}
	fallbackDebt = []string{
		"With debts, list them by interest rate. Paying extra on the most expensive one first saves you the most.",
		"If EMIs feel heavy, check which ones carry the highest rate and whether any can be paid down early.",
	}
)

var fallbackTopics = []struct {
	keywords []string
	replies  []string
}{
	{[]string{"budget", "spend", "expense"}, fallbackBudget},
	{[]string{"save", "saving", "goal", "emergency"}, fallbackSaving},
	{[]string{"debt", "loan", "emi", "credit"}, fallbackDebt},
}

// FallbackResponder genera respuestas predefinidas cuando el modelo no esta disponible.
// Nunca falla y nunca devuelve un texto vacio. No guarda estado: la rotacion sale del
// historial de la propia sesion.
type FallbackResponder struct{}

func NewFallbackResponder() *FallbackResponder {
	return &FallbackResponder{}
}

// Reply elige una respuesta del tema (round-robin sobre las respuestas ya dadas en la sesion)
// evitando repetir la ultima respuesta del asistente.
func (f *FallbackResponder) Reply(userText string, prior []domain.ChatTurn) string {
	_, pool := pickFallbackPool(userText)

	used := 0
	last := ""
	for _, turn := range prior {
		if turn.Role != domain.RoleAssistant {
			continue
		}
		last = turn.Text
		if containsReply(pool, turn.Text) {
			used++
		}
	}

	idx := used % len(pool)
	if pool[idx] == last && len(pool) > 1 {
		idx = (idx + 1) % len(pool)
	}
	return pool[idx]
}

func pickFallbackPool(userText string) (string, []string) {
	text := strings.ToLower(userText)
	for _, topic := range fallbackTopics {
		for _, kw := range topic.keywords {
			if strings.Contains(text, kw) {
				return topic.keywords[0], topic.replies
			}
		}
	}
	return "generic", fallbackGeneric
}

// IsFallbackReply indica si el texto es una de las respuestas predefinidas.
func IsFallbackReply(text string) bool {
	for _, pool := range [][]string{fallbackGeneric, fallbackBudget, fallbackSaving, fallbackDebt} {
		if containsReply(pool, text) {
			return true
		}
	}
	return false
}

func containsReply(pool []string, text string) bool {
	for _, r := range pool {
		if r == text {
			return true
		}
	}
	return false
}
