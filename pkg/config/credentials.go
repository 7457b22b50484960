package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

// notifyPlaceholder keeps the hook functional (the request just fails
// harmlessly) when no telegram credentials are configured.
const notifyPlaceholder = "https://api.telegram.org/bot<TELEGRAM_API_KEY>/sendMessage?chat_id=<CHAT_ID>&text=hasSlot"

// SecurityQuestion maps a security-question input selector to its answer.
type SecurityQuestion struct {
	Tag    string `json:"tag"`
	Answer string `json:"answer"`
}

// Credentials is the on-disk credential store. It is loaded once at
// startup and read-only for the lifetime of the process. None of its
// fields may ever be logged.
type Credentials struct {
	Username          string             `json:"username"`
	Password          string             `json:"password"`
	SecurityQuestions []SecurityQuestion `json:"security_questions"`
	TelegramBotToken  string             `json:"telegram_bot_token"`
	TelegramChatID    string             `json:"telegram_chat_id"`
}

// LoadCredentials reads and validates the credential store.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential store: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credential store: %w", err)
	}

	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("credential store must contain username and password")
	}
	return &creds, nil
}

// Answers returns the security answers keyed by input selector. Entries
// without a tag or answer are skipped.
func (c *Credentials) Answers() map[string]string {
	answers := make(map[string]string, len(c.SecurityQuestions))
	for _, q := range c.SecurityQuestions {
		if q.Tag == "" || q.Answer == "" {
			continue
		}
		answers[q.Tag] = q.Answer
	}
	return answers
}

// NotifyURL builds the notification URL the interception hook pings when
// slots are available. Telegram credentials come from the store, then from
// the TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID environment, then a
// non-functional placeholder so the hook never needs a nil check.
func (c *Credentials) NotifyURL() string {
	token := c.TelegramBotToken
	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	chat := c.TelegramChatID
	if chat == "" {
		chat = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if token == "" || chat == "" {
		return notifyPlaceholder
	}
	return fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage?chat_id=%s&text=hasSlot",
		token, url.QueryEscape(chat))
}
