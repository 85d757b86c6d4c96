package certgen

// Result is the outcome of rendering one name.
type Result struct {
	Name  string
	Entry string
	PNG   []byte
	Err   error
}

type RenderedEntry struct {
	Name  string `json:"name"`
	Entry string `json:"entry"`
}

type SkippedName struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report summarises a batch.
type Report struct {
	Total    int             `json:"total"`
	Rendered []RenderedEntry `json:"rendered"`
	Skipped  []SkippedName   `json:"skipped"`
}

func (r *Report) add(res Result) {
	if res.Err != nil {
		r.Skipped = append(r.Skipped, SkippedName{Name: res.Name, Reason: res.Err.Error()})
		return
	}
	r.Rendered = append(r.Rendered, RenderedEntry{Name: res.Name, Entry: res.Entry})
}
