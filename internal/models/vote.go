package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NoEstimate is the card a participant plays when they cannot estimate.
const NoEstimate Vote = "?"

// DefaultScale is the deck used when none is configured.
var DefaultScale = Scale{"1", "2", "3", "5", "8", "13", "21", NoEstimate}

// Vote is one card from the session's scale. Numbers and strings decode to the same card.
type Vote string

// UnmarshalJSON accepts 5 as well as "5".
func (v *Vote) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Vote(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("vote must be a string or number: %w", err)
	}
	*v = Vote(n.String())
	return nil
}

// Numeric reports the card's numeric value, if it has one.
func (v Vote) Numeric() (float64, bool) {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Scale is the ordered set of cards participants may play.
type Scale []Vote

// ParseScale reads a comma-separated deck such as "1,2,3,5,8,?".
func ParseScale(s string) (Scale, error) {
	var out Scale
	seen := make(map[Vote]struct{})
	for _, part := range strings.Split(s, ",") {
		card := Vote(strings.TrimSpace(part))
		if card == "" {
			continue
		}
		if _, dup := seen[card]; dup {
			return nil, fmt.Errorf("duplicate card %q: %w", card, ErrInvalidArgument)
		}
		seen[card] = struct{}{}
		out = append(out, card)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty vote scale: %w", ErrInvalidArgument)
	}
	return out, nil
}

// Contains reports whether v is a card on the scale.
func (s Scale) Contains(v Vote) bool {
	for _, card := range s {
		if card == v {
			return true
		}
	}
	return false
}

func (s Scale) String() string {
	parts := make([]string, len(s))
	for i, card := range s {
		parts[i] = string(card)
	}
	return strings.Join(parts, ",")
}
