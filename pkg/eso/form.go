package eso

import (
	"io"

	"golang.org/x/net/html"
)

// Names of the hidden form inputs the portal requires on every AJAX request.
const (
	FieldFormToken   = "form_token"
	FieldFormBuildID = "form_build_id"
	FieldFormID      = "form_id"
)

// FormTokens holds the anti-forgery fields rendered into the consumption
// form. The zero value has no fields set. FormTokens is a value type so a
// copy can be modified without affecting the session it came from.
type FormTokens struct {
	token   string
	buildID string
	id      string
}

// Get returns the value of the named field and whether it is present. Fields
// with an empty value are reported as absent.
func (f FormTokens) Get(name string) (string, bool) {
	var v string
	switch name {
	case FieldFormToken:
		v = f.token
	case FieldFormBuildID:
		v = f.buildID
	case FieldFormID:
		v = f.id
	}
	return v, v != ""
}

// Set updates the named field. Unknown names are ignored.
func (f *FormTokens) Set(name, value string) {
	switch name {
	case FieldFormToken:
		f.token = value
	case FieldFormBuildID:
		f.buildID = value
	case FieldFormID:
		f.id = value
	}
}

// Empty reports whether none of the fields are set.
func (f FormTokens) Empty() bool {
	return f.token == "" && f.buildID == "" && f.id == ""
}

// ParseFormTokens scans an HTML document for the form token inputs. It never
// fails: a page without the form (for example the login page after a failed
// login) simply yields absent fields. If a field appears more than once the
// last occurrence wins.
func ParseFormTokens(r io.Reader) FormTokens {
	var tokens FormTokens
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a read error, either way we're done
			return tokens
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr || string(name) != "input" {
				continue
			}
			var fieldName, value string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch string(key) {
				case "name":
					fieldName = string(val)
				case "value":
					value = string(val)
				}
			}
			tokens.Set(fieldName, value)
		}
	}
}
