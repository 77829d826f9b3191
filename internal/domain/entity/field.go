package entity

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxFieldLen = 500

// ValidationError is a recoverable dialogue-level failure: the input
// did not pass the field's validator and the actor should be asked
// again. It is carried in engine replies, not returned up the stack.
type ValidationError struct {
	Key string
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Key, e.Msg)
}

type FieldDefinition struct {
	Key          string
	Label        string
	Prompt       string
	Choices      []string
	AllowsCustom bool
	validate     func(value string) string // returns a message on failure, "" on success
}

// Validate checks a candidate value. A nil return means the value is
// acceptable as-is.
func (f *FieldDefinition) Validate(value string) *ValidationError {
	value = strings.TrimSpace(value)
	if value == "" {
		return &ValidationError{Key: f.Key, Msg: "значення не може бути порожнім"}
	}
	if utf8.RuneCountInString(value) > maxFieldLen {
		return &ValidationError{Key: f.Key, Msg: fmt.Sprintf("значення задовге (максимум %d символів)", maxFieldLen)}
	}
	if f.validate != nil {
		if msg := f.validate(value); msg != "" {
			return &ValidationError{Key: f.Key, Msg: msg}
		}
	}
	return nil
}

// HasChoice reports whether value matches one of the preset choices.
func (f *FieldDefinition) HasChoice(value string) bool {
	for _, c := range f.Choices {
		if c == value {
			return true
		}
	}
	return false
}

// Schema is the fixed ordered set of fields a dialogue walks through.
// Immutable after construction.
type Schema struct {
	fields []FieldDefinition
	index  map[string]int
}

func NewSchema(fields []FieldDefinition) (*Schema, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Key == "" {
			return nil, fmt.Errorf("field %d has no key", i)
		}
		if _, dup := index[f.Key]; dup {
			return nil, fmt.Errorf("duplicate field key %q", f.Key)
		}
		index[f.Key] = i
	}
	return &Schema{fields: fields, index: index}, nil
}

func (s *Schema) Len() int { return len(s.fields) }

func (s *Schema) Ordered() []FieldDefinition {
	out := make([]FieldDefinition, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) At(i int) *FieldDefinition {
	return &s.fields[i]
}

func (s *Schema) ByKey(key string) (*FieldDefinition, bool) {
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return &s.fields[i], true
}

// Keys returns the field keys in schema order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Key
	}
	return keys
}

// EmptyFields returns a value map with every schema key present and
// unset. An offer's Fields map always starts from this.
func (s *Schema) EmptyFields() map[string]string {
	m := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		m[f.Key] = ""
	}
	return m
}

func amountValidator(value string) string {
	for _, r := range value {
		if r < '0' || r > '9' {
			return "вкажіть суму цифрами, наприклад 350"
		}
	}
	if strings.TrimLeft(value, "0") == "" {
		return "сума має бути більшою за нуль"
	}
	return ""
}

// DefaultSchema is the broker offer schema: thirteen fields in the
// order the dialogue asks them.
func DefaultSchema() *Schema {
	s, err := NewSchema([]FieldDefinition{
		{
			Key:          "category",
			Label:        "Категорія",
			Prompt:       "Оберіть категорію:",
			Choices:      []string{"Оренда", "Продаж"},
			AllowsCustom: true,
		},
		{
			Key:          "housing_type",
			Label:        "Тип житла",
			Prompt:       "Оберіть тип житла:",
			Choices:      []string{"Кімната", "Квартира", "Будинок", "Комерція"},
			AllowsCustom: true,
		},
		{Key: "street", Label: "Вулиця", Prompt: "Вкажіть вулицю:"},
		{Key: "city", Label: "Місто", Prompt: "Вкажіть місто:"},
		{Key: "district", Label: "Район", Prompt: "Вкажіть район:"},
		{Key: "advantages", Label: "Переваги", Prompt: "Опишіть переваги:"},
		{Key: "rent", Label: "Ціна", Prompt: "Вкажіть ціну (цифрами):", validate: amountValidator},
		{Key: "deposit", Label: "Депозит", Prompt: "Вкажіть депозит (цифрами):", validate: amountValidator},
		{Key: "commission", Label: "Комісія", Prompt: "Вкажіть комісію (цифрами):", validate: amountValidator},
		{Key: "parking", Label: "Паркінг", Prompt: "Паркінг (так/ні або опис):"},
		{Key: "move_in_from", Label: "Заселення", Prompt: "Заселення з якої дати?"},
		{Key: "viewings_from", Label: "Огляди", Prompt: "Огляди з якої дати?"},
		{Key: "broker", Label: "Маклер", Prompt: "Вкажіть ім'я маклера:"},
	})
	if err != nil {
		panic(err) // static schema, unreachable
	}
	return s
}
