package api

// Document is a provider resource representation as returned by the
// API: a JSON object carrying at least an href self-link once created,
// and usually a status field and a tags object.
type Document map[string]any

// String returns the named field if it is a string, or "".
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Href returns the resource's self-link, or "" before creation.
func (d Document) Href() string {
	return d.String("href")
}

// Status returns the resource's status field, or "".
func (d Document) Status() string {
	return d.String("status")
}

// Tags returns the resource's tags as a string map. Non-string tag
// values are skipped.
func (d Document) Tags() map[string]string {
	tags := make(map[string]string)

	raw, _ := d["tags"].(map[string]any)
	for k, v := range raw {
		if s, ok := v.(string); ok {
			tags[k] = s
		}
	}

	return tags
}
