package prompt

import (
	"strings"
	"text/template"

	"supportbot/internal/orders"
	supporterr "supportbot/pkg/errors"
)

const supportTemplate = `You are a helpful customer support assistant for Memo Hero Delivery.
Use the policy documents and the user's order data (if provided) to answer succinctly and politely.
Cite (briefly) when you use policy text.

Policy excerpts:
{{.PolicyTexts}}

Order info:
{{.OrderText}}

User question:
{{.Question}}

Answer in 2-4 concise sentences. If you don't have enough info, ask for the order id or more details.
`

var tmpl = template.Must(template.New("support").Parse(supportTemplate))

// Input is everything the prompt is assembled from.
type Input struct {
	Excerpts []string
	// Order is the looked-up record, nil when absent.
	Order *orders.Order
	// OrderID is what the user typed, possibly empty.
	OrderID  string
	Question string
}

// OrderText describes the order section of the prompt.
func OrderText(in Input) string {
	switch {
	case in.Order != nil:
		return in.Order.Text()
	case strings.TrimSpace(in.OrderID) != "":
		return "No order found with id " + strings.TrimSpace(in.OrderID) + "."
	default:
		return "No order provided."
	}
}

// Build renders the support prompt.
func Build(in Input) (string, error) {
	var b strings.Builder
	err := tmpl.Execute(&b, struct {
		PolicyTexts string
		OrderText   string
		Question    string
	}{
		PolicyTexts: strings.Join(in.Excerpts, "\n\n"),
		OrderText:   OrderText(in),
		Question:    strings.TrimSpace(in.Question),
	})
	if err != nil {
		return "", supporterr.Wrap(err, supporterr.CodePromptRenderFailure, "rendering prompt")
	}
	return b.String(), nil
}
