// Package events decodes settlement log entries against fixed, ordered
// field schemas. A missing or malformed log is a first-class failure: the
// action settled but its effect could not be observed, and downstream
// reward/score logic must not run on guesses.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/raigotchi/petops/internal/gateway"
)

// ErrUndecodable reports that no log entry from the expected contract was
// present, or that the matching entry did not fit the schema.
var ErrUndecodable = errors.New("settlement outcome undecodable")

type FieldKind int

const (
	Uint FieldKind = iota
	Text
	Address
)

type Field struct {
	Name string
	Kind FieldKind
}

// Schema is a fixed, positional description of one event's fields.
type Schema struct {
	Name   string
	Fields []Field
}

// Attack is emitted by the attack contract when combat resolves.
var Attack = Schema{
	Name: "Attack",
	Fields: []Field{
		{Name: "attacker", Kind: Uint},
		{Name: "winner", Kind: Uint},
		{Name: "loser", Kind: Uint},
		{Name: "scoresWon", Kind: Uint},
		{Name: "prizeDebt", Kind: Uint},
	},
}

// StartBreed is emitted by the breed contract when a breed process opens.
var StartBreed = Schema{
	Name: "StartBreed",
	Fields: []Field{
		{Name: "breedId", Kind: Uint},
	},
}

// Outcome holds one decoded event's fields.
type Outcome struct {
	Event string
	uints map[string]*big.Int
	texts map[string]string
}

// Uint returns a numeric field truncated to uint64. Fields are validated
// at decode time, so a missing name is a programming error and reads as 0.
func (o *Outcome) Uint(name string) uint64 {
	if v, ok := o.uints[name]; ok {
		return v.Uint64()
	}
	return 0
}

// Big returns a copy of a numeric field at full width.
func (o *Outcome) Big(name string) *big.Int {
	if v, ok := o.uints[name]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (o *Outcome) Text(name string) string {
	return o.texts[name]
}

// MarshalJSON flattens the decoded fields for journaling. Numeric fields
// marshal as decimal strings to stay lossless at full width.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(o.uints)+len(o.texts))
	for k, v := range o.uints {
		fields[k] = v.String()
	}
	for k, v := range o.texts {
		fields[k] = v
	}
	return json.Marshal(struct {
		Event  string         `json:"event"`
		Fields map[string]any `json:"fields"`
	}{Event: o.Event, Fields: fields})
}

// Decode extracts the first log entry originating from origin and decodes
// its positional values against the schema.
func Decode(schema Schema, rec gateway.SettlementRecord, origin string) (*Outcome, error) {
	var entry *gateway.LogEntry
	for i := range rec.Logs {
		if strings.EqualFold(rec.Logs[i].Origin, origin) {
			entry = &rec.Logs[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: no %s log from %s in tx %s", ErrUndecodable, schema.Name, origin, rec.TxHash)
	}
	if len(entry.Values) < len(schema.Fields) {
		return nil, fmt.Errorf("%w: %s log has %d values, schema %s needs %d",
			ErrUndecodable, origin, len(entry.Values), schema.Name, len(schema.Fields))
	}

	out := &Outcome{
		Event: schema.Name,
		uints: map[string]*big.Int{},
		texts: map[string]string{},
	}
	for i, field := range schema.Fields {
		raw := entry.Values[i]
		switch field.Kind {
		case Uint:
			v, ok := new(big.Int).SetString(raw, 10)
			if !ok || v.Sign() < 0 {
				return nil, fmt.Errorf("%w: field %s.%s: bad integer %q", ErrUndecodable, schema.Name, field.Name, raw)
			}
			out.uints[field.Name] = v
		case Text, Address:
			out.texts[field.Name] = raw
		default:
			return nil, fmt.Errorf("%w: field %s.%s: unknown kind", ErrUndecodable, schema.Name, field.Name)
		}
	}
	return out, nil
}
