package catalog

// Known semantic field names. Anything else coming from the remote store is
// kept in the record's Extra map and passed through untouched on push.
const (
	FieldTitle          = "title"
	FieldBodyHTML       = "body_html"
	FieldShortDesc      = "short_description"
	FieldHandle         = "handle"
	FieldSEOTitle       = "seo_title"
	FieldSEODescription = "seo_description"
	FieldKeyword        = "keyword"
	FieldTags           = "tags"
	FieldVendor         = "vendor"
	FieldProductType    = "product_type"
	FieldOptions        = "options"
	FieldSellingPoints  = "selling_points"
)

// KnownFields lists the semantic fields in canonical display order.
var KnownFields = []string{
	FieldTitle,
	FieldBodyHTML,
	FieldShortDesc,
	FieldHandle,
	FieldSEOTitle,
	FieldSEODescription,
	FieldKeyword,
	FieldTags,
	FieldVendor,
	FieldProductType,
	FieldOptions,
	FieldSellingPoints,
}

var knownFieldSet = func() map[string]bool {
	m := make(map[string]bool, len(KnownFields))
	for _, f := range KnownFields {
		m[f] = true
	}
	return m
}()

// IsKnownField reports whether name is one of the semantic fields the editor
// understands.
func IsKnownField(name string) bool {
	return knownFieldSet[name]
}

// Record is one catalog item: a stable identifier plus string-valued fields.
// Fields holds the known semantic fields; Extra holds unknown remote fields so
// schema drift from the store never loses data.
type Record struct {
	ID     string
	Fields map[string]string
	Extra  map[string]string
}

// NewRecord returns an empty record with allocated maps.
func NewRecord(id string) Record {
	return Record{
		ID:     id,
		Fields: map[string]string{},
		Extra:  map[string]string{},
	}
}

// Get returns the value of a field, known or extra.
func (r Record) Get(field string) string {
	if v, ok := r.Fields[field]; ok {
		return v
	}
	return r.Extra[field]
}

// Set writes a field value, routing unknown names into Extra.
func (r Record) Set(field, value string) {
	if IsKnownField(field) {
		r.Fields[field] = value
		return
	}
	r.Extra[field] = value
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := Record{
		ID:     r.ID,
		Fields: make(map[string]string, len(r.Fields)),
		Extra:  make(map[string]string, len(r.Extra)),
	}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	for k, v := range r.Extra {
		out.Extra[k] = v
	}
	return out
}

// Equal reports whether two records hold identical field values.
func (r Record) Equal(other Record) bool {
	if r.ID != other.ID || len(r.Fields) != len(other.Fields) || len(r.Extra) != len(other.Extra) {
		return false
	}
	for k, v := range r.Fields {
		if ov, ok := other.Fields[k]; !ok || ov != v {
			return false
		}
	}
	for k, v := range r.Extra {
		if ov, ok := other.Extra[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// CloneList deep-copies a record list preserving order.
func CloneList(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
