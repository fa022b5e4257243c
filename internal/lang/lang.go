// Package lang resolves user-visible messages for interactions and errors.
package lang

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

const (
	KeyConnection  = "error.connection"
	KeyUnknown     = "error.unknown"
	KeyInterrupted = "error.interrupted"
)

//go:embed messages.yaml
var defaultMessages []byte

type document struct {
	Messages map[string]string `yaml:"messages"`
}

// Catalog is a read-only set of messages. The zero value is empty and usable.
type Catalog struct {
	messages map[string]string
}

// Parse reads a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if doc.Messages == nil {
		doc.Messages = map[string]string{}
	}
	return &Catalog{messages: doc.Messages}, nil
}

// LoadFile reads a YAML catalog from path and layers it over the defaults, so
// a partial file only overrides the keys it names.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Default().With(override), nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultMessages)
	if err != nil {
		panic(fmt.Sprintf("lang: embedded catalog: %v", err))
	}
	return c
}

// With returns a new catalog holding c's messages overridden by other's.
func (c *Catalog) With(other *Catalog) *Catalog {
	merged := make(map[string]string, c.Len()+other.Len())
	if c != nil {
		for k, v := range c.messages {
			merged[k] = v
		}
	}
	if other != nil {
		for k, v := range other.messages {
			merged[k] = v
		}
	}
	return &Catalog{messages: merged}
}

// Len is the number of keys in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.messages)
}

// Message returns the message for key, or "" if there is none.
func (c *Catalog) Message(key string) string {
	if c == nil {
		return ""
	}
	return c.messages[key]
}

// Lookup returns the message for key and whether the key exists. A key may
// exist with an empty message, which silences its fallback.
func (c *Catalog) Lookup(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	msg, ok := c.messages[key]
	return msg, ok
}

// Translate returns the message for an interaction, trying
// interaction.<CODE>.<REASON> first and interaction.<CODE> second.
func (c *Catalog) Translate(in model.Interaction) string {
	if in.Code == "" {
		return ""
	}
	if msg, ok := c.Lookup(InteractionKey(in.Code, in.Reason)); ok {
		return msg
	}
	return c.Message(InteractionKey(in.Code, ""))
}

// FieldMessage returns the message for a validation code such as
// INVALID_NUMBER, falling back to the generic MISSING or INVALID message.
func (c *Catalog) FieldMessage(code string) string {
	if msg := c.Message("validation." + code); msg != "" {
		return msg
	}
	if i := strings.IndexByte(code, '_'); i > 0 {
		return c.Message("validation." + code[:i])
	}
	return ""
}

// InteractionKey builds the catalog key for an interaction.
func InteractionKey(code, reason string) string {
	if reason == "" {
		return "interaction." + code
	}
	return "interaction." + code + "." + reason
}
