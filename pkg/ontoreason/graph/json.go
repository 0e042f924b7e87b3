package graph

import (
	"encoding/json"
	"fmt"
)

type termJSON struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

// MarshalJSON encodes a term as {"type":"iri"|"literal","value":...}.
// The wildcard encodes as null.
func (t Term) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case KindIRI:
		return json.Marshal(termJSON{Type: "iri", Value: t.Value})
	case KindLiteral:
		return json.Marshal(termJSON{Type: "literal", Value: t.Value, Datatype: t.Datatype, Lang: t.Lang})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes the MarshalJSON form.
func (t *Term) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Term{}
		return nil
	}
	var j termJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	switch j.Type {
	case "iri":
		*t = IRI(j.Value)
	case "literal":
		switch {
		case j.Lang != "":
			*t = LangLiteral(j.Value, j.Lang)
		default:
			*t = TypedLiteral(j.Value, j.Datatype)
		}
	default:
		return fmt.Errorf("graph: unknown term type %q", j.Type)
	}
	return nil
}
