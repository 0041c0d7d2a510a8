package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
)

//go:embed template/*.txt
var templateFS embed.FS

var handlers = []contractx.HandlerName{
	contractx.HandlerSales,
	contractx.HandlerRecommendation,
	contractx.HandlerInventory,
	contractx.HandlerPayment,
	contractx.HandlerFulfillment,
	contractx.HandlerLoyalty,
	contractx.HandlerPostPurchase,
}

const DefaultChannel = "web_chat"

var channelGuidance = map[string]string{
	"web_chat":   "Friendly and professional. Rich formatting such as short lists is fine.",
	"mobile_app": "Short replies. An emoji now and then at most. Offer quick follow-up actions.",
	"whatsapp":   "Relaxed and warm. Emojis are welcome. Short lines with breaks between them.",
	"telegram":   "Relaxed and warm, close to WhatsApp. Suggest quick-reply options where useful.",
	"kiosk":      "Plain and direct. The customer is standing at a screen, so lead with the key facts.",
	"voice":      "Spoken style. No lists or symbols. Check back with the customer often.",
}

// ChannelGuidance returns the tone guidance for channel, falling back to web chat.
func ChannelGuidance(channel string) string {
	if g, ok := channelGuidance[strings.ToLower(strings.TrimSpace(channel))]; ok {
		return g
	}
	return channelGuidance[DefaultChannel]
}

// PromptSet holds the trimmed instruction template of every handler.
type PromptSet struct {
	templates map[contractx.HandlerName]string
}

// LoadPromptSet reads the embedded templates. The embed is compile-time, so
// the only failure is a handler without a template file.
func LoadPromptSet() (PromptSet, error) {
	set := PromptSet{templates: make(map[contractx.HandlerName]string, len(handlers))}
	for _, h := range handlers {
		raw, err := templateFS.ReadFile("template/" + string(h) + ".txt")
		if err != nil {
			return PromptSet{}, fmt.Errorf("%w: handler=%s: %v", contractx.ErrPromptMissing, h, err)
		}
		set.templates[h] = strings.TrimSpace(string(raw))
	}
	return set, nil
}

func (s PromptSet) Template(handler contractx.HandlerName) (string, error) {
	tpl, ok := s.templates[handler]
	if !ok || tpl == "" {
		return "", fmt.Errorf("%w: handler=%s", contractx.ErrPromptMissing, handler)
	}
	return tpl, nil
}

// Render fills the handler template with vars using FString placeholders.
// Every placeholder in the template must be present in vars.
func (s PromptSet) Render(ctx context.Context, handler contractx.HandlerName, vars map[string]any) (string, error) {
	tpl, err := s.Template(handler)
	if err != nil {
		return "", err
	}
	msgs, err := einoprompt.FromMessages(schema.FString, schema.SystemMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%w: render handler=%s: %v", contractx.ErrValidation, handler, err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("%w: handler=%s rendered no message", contractx.ErrPromptMissing, handler)
	}
	return msgs[0].Content, nil
}
