package report

import (
	"encoding/json"
	"io"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/diagnostics"
)

type jsonDocument struct {
	*Document
	Flagged []diagnostics.Row `json:"flagged"`
}

func writeJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	flagged := doc.Result.Flagged()
	if flagged == nil {
		flagged = []diagnostics.Row{}
	}
	return enc.Encode(jsonDocument{Document: doc, Flagged: flagged})
}
