// Package buyers supplies per-attempt identities that are substituted into
// the purchase request, so each attempt can claim to be a different user.
package buyers

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Buyer is one row of identity fields, e.g. user_id or token.
type Buyer map[string]string

// IDField is always set to the attempt id.
const IDField = "id"

// List is a fixed set of buyers handed out by attempt id. Attempt n gets
// buyer (n-1) mod len, so the assignment does not depend on scheduling.
type List struct {
	buyers []Buyer
}

func NewList(buyers []Buyer) (*List, error) {
	if len(buyers) == 0 {
		return nil, fmt.Errorf("buyer list is empty")
	}
	return &List{buyers: buyers}, nil
}

// Load reads buyers from path. Files ending in .json are decoded as an array
// of objects, anything else as CSV with a header row.
func Load(path string) (*List, error) {
	var (
		rows []Buyer
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		rows, err = readJSON(path)
	default:
		rows, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	return NewList(rows)
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.buyers)
}

// ForAttempt returns the fields for attempt id, including IDField. A nil
// list yields only the attempt id.
func (l *List) ForAttempt(id int) Buyer {
	out := Buyer{}
	if l != nil && len(l.buyers) > 0 {
		idx := (id - 1) % len(l.buyers)
		if idx < 0 {
			idx += len(l.buyers)
		}
		for k, v := range l.buyers[idx] {
			out[k] = v
		}
	}
	out[IDField] = strconv.Itoa(id)
	return out
}

// HasPlaceholder reports whether s contains a {{field}} reference.
func HasPlaceholder(s string) bool {
	i := strings.Index(s, "{{")
	return i >= 0 && strings.Contains(s[i:], "}}")
}

// Render replaces every {{field}} in s with the buyer's value. Unknown fields
// are left untouched.
func Render(s string, b Buyer) string {
	if !HasPlaceholder(s) {
		return s
	}
	pairs := make([]string, 0, len(b)*2)
	for k, v := range b {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
