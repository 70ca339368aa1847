package client

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"exchange-rate-mcp/pkg/protocol"
)

// DefaultQuestion is asked when the caller supplies none.
const DefaultQuestion = `Based on these rates, if I have 1000 USD, how much would that be in EUR and GBP?
Please show your calculations and provide a brief explanation of the current exchange rate situation.`

// FormatRates renders one "CODE: rate" line per currency, sorted by code.
func FormatRates(rates map[string]float64) string {
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	lines := make([]string, 0, len(codes))
	for _, code := range codes {
		lines = append(lines, fmt.Sprintf("%s: %v", code, rates[code]))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt embeds a rate table into a financial assistant prompt.
func BuildPrompt(content protocol.RateContent, question string) string {
	if strings.TrimSpace(question) == "" {
		question = DefaultQuestion
	}
	return fmt.Sprintf(`
You are a helpful financial assistant with access to the latest exchange rates.

Current exchange rates (base: %s, date: %s):
%s

%s
`, content.Base, content.Date, FormatRates(content.Rates), question)
}

// Conversation renders a prompt and its answer as saved to disk.
func Conversation(prompt, response string) string {
	return fmt.Sprintf("\nPROMPT:\n%s\n\nRESPONSE:\n%s\n", prompt, response)
}

// SaveConversation overwrites path with the rendered conversation.
func SaveConversation(path, prompt, response string) error {
	return os.WriteFile(path, []byte(Conversation(prompt, response)), 0o644)
}
