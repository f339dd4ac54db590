package contacts

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	logx "blastbot/pkg/logx"
)

// Contact is one delivery target from the contact list.
type Contact struct {
	Name   string
	Number string // normalized "+<digits>" form
}

// record matches the persisted JSON shape.
type record struct {
	Numero string `json:"numero"`
	Nom    string `json:"nom"`
}

// Store loads and normalizes the contact list.
type Store struct {
	path        string
	countryCode string
	log         logx.Logger
}

func NewStore(path, defaultCountryCode string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{path: path, countryCode: strings.TrimSpace(defaultCountryCode), log: log}
}

// Load reads the contact file and returns the valid, normalized contacts.
// Contacts whose number cannot be normalized are skipped with a warning,
// never failing the whole list.
//
// The file is usually a JSON array, but hand-edited lists in the wild also
// show up as concatenated objects ({...}{...}) or line-delimited objects;
// a streaming decoder accepts all three.
func (s *Store) Load() ([]Contact, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recs, err := decodeRecords(f)
	if err != nil {
		return nil, err
	}

	out := make([]Contact, 0, len(recs))
	skipped := 0
	for _, r := range recs {
		num, ok := Normalize(r.Numero, s.countryCode)
		if !ok {
			skipped++
			s.log.Warn("contact skipped (invalid number)", logx.String("name", r.Nom), logx.String("raw", r.Numero))
			continue
		}
		out = append(out, Contact{Name: strings.TrimSpace(r.Nom), Number: num})
	}
	if skipped > 0 {
		s.log.Info("contact list loaded with skips", logx.Int("valid", len(out)), logx.Int("skipped", skipped))
	}
	return out, nil
}

func decodeRecords(r io.Reader) ([]record, error) {
	dec := json.NewDecoder(r)
	var recs []record
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		switch tok {
		case json.Delim('['):
			for dec.More() {
				var rec record
				if err := dec.Decode(&rec); err != nil {
					return nil, err
				}
				recs = append(recs, rec)
			}
			// consume the closing ']'
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
		case json.Delim('{'):
			// A bare object: re-assemble it field by field. The opening brace
			// has already been consumed by Token().
			var rec record
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				var val any
				if err := dec.Decode(&val); err != nil {
					return nil, err
				}
				sv, _ := val.(string)
				switch key {
				case "numero":
					rec.Numero = sv
				case "nom":
					rec.Nom = sv
				}
			}
			if _, err := dec.Token(); err != nil { // closing '}'
				return nil, err
			}
			recs = append(recs, rec)
		default:
			return nil, errors.New("contacts: unexpected token in contact file")
		}
	}
}

// Normalize converts a raw phone entry to "+<digits>" E.164-like form.
//
// Rules:
//   - strip everything except digits and a leading '+'
//   - "00" international prefix becomes '+'
//   - a single leading trunk '0' is replaced by the default country code
//   - anything else is assumed to already carry its country code
//
// Numbers that end up outside 8..15 digits are rejected.
func Normalize(raw, defaultCountryCode string) (string, bool) {
	s := strings.TrimSpace(raw)
	// Gateway-style ids ("<digits>@c.us") are already routable; keep as-is.
	if strings.Contains(s, "@") {
		return s, s != "@"
	}

	plus := strings.HasPrefix(s, "+")
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", false
	}

	switch {
	case plus:
		// already international
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		if defaultCountryCode == "" {
			return "", false
		}
		digits = defaultCountryCode + digits[1:]
	}

	if len(digits) < 8 || len(digits) > 15 {
		return "", false
	}
	return "+" + digits, true
}
