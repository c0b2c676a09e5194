package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Greeting is the first bot message of every conversation.
const Greeting = "👋 Hi! I'm Leaf Bot, your friendly agricultural assistant! 🌱 Ask me anything about crops, farming techniques, plant diseases, or seasonal growing tips!"

// Role identifies who wrote a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one entry in the conversation log.
type Message struct {
	Role Role   `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

// Conversation is the state of one chat widget. It lives as long as the view
// that owns it.
type Conversation struct {
	sender Sender

	mu       sync.Mutex
	open     bool
	language Language
	messages []Message
	loading  bool
}

// NewConversation starts a closed conversation holding the greeting.
func NewConversation(sender Sender, lang Language) *Conversation {
	if lang != Hindi {
		lang = English
	}
	return &Conversation{
		sender:   sender,
		language: lang,
		messages: []Message{{Role: RoleBot, Text: Greeting}},
	}
}

func (c *Conversation) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
}

func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

func (c *Conversation) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// ToggleLanguage switches between English and Hindi and returns the new value.
func (c *Conversation) ToggleLanguage() Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.language == English {
		c.language = Hindi
	} else {
		c.language = English
	}
	return c.language
}

func (c *Conversation) Language() Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

func (c *Conversation) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Send appends the user's message, asks the assistant and appends its reply.
// Blank input and sends while a reply is pending are ignored and return
// false. A failed request appends the localized fallback instead of an error.
func (c *Conversation) Send(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if text == "" || c.loading {
		c.mu.Unlock()
		return false
	}
	lang := c.language
	c.messages = append(c.messages, Message{Role: RoleUser, Text: text})
	c.loading = true
	c.mu.Unlock()

	reply, err := c.sender.Send(ctx, text, lang)
	if err != nil {
		slog.Warn("Chat request failed", "language", lang, "err", err)
		reply = lang.Fallback()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{Role: RoleBot, Text: reply})
	c.loading = false
	return true
}
