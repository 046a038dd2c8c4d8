package messaging

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ContentType identifies the shape of an AgentContentMessage.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeCard     ContentType = "card"
	ContentTypeCarousel ContentType = "carousel"
	ContentTypeFile     ContentType = "file"
)

// SuggestionType identifies the action behind a Suggestion.
type SuggestionType string

const (
	SuggestionDial    SuggestionType = "dial"
	SuggestionOpenURL SuggestionType = "openUrl"
	SuggestionReply   SuggestionType = "reply"
)

// StatusType identifies an AgentStatusMessage.
type StatusType string

const (
	StatusTyping StatusType = "typing"
	StatusRead   StatusType = "read"
)

const (
	messageTypeContent = "content"
	messageTypeStatus  = "status"
)

var (
	ErrUserIDRequired     = errors.New("user id is required")
	ErrInvalidContent     = errors.New("invalid content message")
	ErrInvalidStatus      = errors.New("invalid status message")
	ErrInvalidSuggestion  = errors.New("invalid suggestion")
	ErrWebhookURLRequired = errors.New("webhook url is required")
)

// AgentContentMessage is content sent from the bot to a user.
type AgentContentMessage struct {
	ContentType ContentType  `json:"contentType"`
	Text        string       `json:"text,omitempty"`
	Card        *Card        `json:"card,omitempty"`
	Carousel    *Carousel    `json:"carousel,omitempty"`
	File        *File        `json:"file,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Menu        *Menu        `json:"menu,omitempty"`
}

type Card struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	MediaURL    string       `json:"mediaUrl,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

type Carousel struct {
	Cards []Card `json:"cards"`
}

type File struct {
	URL string `json:"url"`
}

// Menu is a persistent set of suggestions shown alongside the conversation.
type Menu struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Suggestion is a tappable response offered to the user.
type Suggestion struct {
	SuggestionType SuggestionType   `json:"suggestionType"`
	Text           string           `json:"text"`
	Context        string           `json:"context,omitempty"`
	Dial           *DialAction      `json:"dial,omitempty"`
	OpenURL        *OpenURLAction   `json:"openUrl,omitempty"`
	Style          *SuggestionStyle `json:"style,omitempty"`
}

type DialAction struct {
	PhoneNumber string `json:"phoneNumber"`
}

type OpenURLAction struct {
	URI string `json:"uri"`
}

// SuggestionStyle holds hex color codes such as "#FFFFFF".
type SuggestionStyle struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
}

// AgentStatusMessage signals conversation state such as typing or read receipts.
type AgentStatusMessage struct {
	StatusType       StatusType `json:"statusType"`
	RelatedMessageID string     `json:"relatedMessageId,omitempty"`
}

// WebhookConfig is a bot's webhook registration.
type WebhookConfig struct {
	WebhookURL string `json:"webhookUrl"`
	InstanceID string `json:"instanceId,omitempty"`
}

// ReplySuggestion is shorthand for a quick-reply suggestion.
func ReplySuggestion(text string) Suggestion {
	return Suggestion{SuggestionType: SuggestionReply, Text: text}
}

// Validate checks that the message carries the field its content type requires.
func (m AgentContentMessage) Validate() error {
	switch m.ContentType {
	case ContentTypeText:
		if strings.TrimSpace(m.Text) == "" {
			return fmt.Errorf("%w: text is required", ErrInvalidContent)
		}
	case ContentTypeCard:
		if m.Card == nil {
			return fmt.Errorf("%w: card is required", ErrInvalidContent)
		}
		if err := m.Card.validate(); err != nil {
			return err
		}
	case ContentTypeCarousel:
		if m.Carousel == nil || len(m.Carousel.Cards) == 0 {
			return fmt.Errorf("%w: carousel needs at least one card", ErrInvalidContent)
		}
		for i := range m.Carousel.Cards {
			if err := m.Carousel.Cards[i].validate(); err != nil {
				return fmt.Errorf("carousel card %d: %w", i, err)
			}
		}
	case ContentTypeFile:
		if m.File == nil || strings.TrimSpace(m.File.URL) == "" {
			return fmt.Errorf("%w: file url is required", ErrInvalidContent)
		}
	case "":
		return fmt.Errorf("%w: content type is required", ErrInvalidContent)
	default:
		return fmt.Errorf("%w: unsupported content type %q", ErrInvalidContent, m.ContentType)
	}

	if err := validateSuggestions(m.Suggestions); err != nil {
		return err
	}
	if m.Menu != nil {
		if err := validateSuggestions(m.Menu.Suggestions); err != nil {
			return fmt.Errorf("menu: %w", err)
		}
	}
	return nil
}

func (c Card) validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: card title is required", ErrInvalidContent)
	}
	return validateSuggestions(c.Suggestions)
}

// Validate checks the action fields required by the suggestion type.
func (s Suggestion) Validate() error {
	if strings.TrimSpace(s.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidSuggestion)
	}
	switch s.SuggestionType {
	case SuggestionReply:
	case SuggestionDial:
		if s.Dial == nil || strings.TrimSpace(s.Dial.PhoneNumber) == "" {
			return fmt.Errorf("%w: dial phone number is required", ErrInvalidSuggestion)
		}
	case SuggestionOpenURL:
		if s.OpenURL == nil || strings.TrimSpace(s.OpenURL.URI) == "" {
			return fmt.Errorf("%w: openUrl uri is required", ErrInvalidSuggestion)
		}
	default:
		return fmt.Errorf("%w: unsupported suggestion type %q", ErrInvalidSuggestion, s.SuggestionType)
	}
	return nil
}

func validateSuggestions(suggestions []Suggestion) error {
	for i, s := range suggestions {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("suggestion %d: %w", i, err)
		}
	}
	return nil
}

func (m AgentStatusMessage) Validate() error {
	switch m.StatusType {
	case StatusTyping, StatusRead:
		return nil
	case "":
		return fmt.Errorf("%w: status type is required", ErrInvalidStatus)
	default:
		return fmt.Errorf("%w: unsupported status type %q", ErrInvalidStatus, m.StatusType)
	}
}

// Validate requires an absolute http(s) webhook URL.
func (c WebhookConfig) Validate() error {
	raw := strings.TrimSpace(c.WebhookURL)
	if raw == "" {
		return ErrWebhookURLRequired
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing webhook url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook url must be an absolute http(s) url: %q", raw)
	}
	return nil
}
