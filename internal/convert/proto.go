// Package convert maps domain values to and from the structpb messages carried
// by the Journal gRPC service.
package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/reflekt/internal/model"
)

// NewID is the wire form of the "not yet persisted" entry id.
const NewID = "new"

// --- helpers ---

func fields(s *structpb.Struct) map[string]*structpb.Value {
	if s == nil {
		return nil
	}
	return s.GetFields()
}

// Str returns the string field key, or "" when absent or of another kind.
func Str(s *structpb.Struct, key string) string {
	return fields(s)[key].GetStringValue()
}

// Int returns the numeric field key truncated to int64.
func Int(s *structpb.Struct, key string) int64 {
	return int64(fields(s)[key].GetNumberValue())
}

// Bool returns the boolean field key.
func Bool(s *structpb.Struct, key string) bool {
	return fields(s)[key].GetBoolValue()
}

func ts(t time.Time) *structpb.Value {
	if t.IsZero() {
		return structpb.NewNullValue()
	}
	return structpb.NewStringValue(t.Format(time.RFC3339Nano))
}

// Time parses an RFC 3339 field; absent or null fields give the zero time.
func Time(s *structpb.Struct, key string) (time.Time, error) {
	raw := strings.TrimSpace(Str(s, key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

// --- entry id ---

// EntryIDValue encodes id, sending NewID for the sentinel.
func EntryIDValue(id int64) *structpb.Value {
	if model.IsNew(id) {
		return structpb.NewStringValue(NewID)
	}
	return structpb.NewNumberValue(float64(id))
}

// ParseEntryID accepts "new", a decimal string, or a positive integral number.
func ParseEntryID(v *structpb.Value) (int64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		raw := strings.TrimSpace(k.StringValue)
		if raw == NewID {
			return model.NewEntryID, nil
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid id %q", raw)
		}
		return id, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n <= 0 || n != math.Trunc(n) || n > 1<<53 {
			return 0, fmt.Errorf("invalid id %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("missing id")
	}
}

// MaxPage bounds archive page numbers read from requests.
const MaxPage = 1_000_000

// PageNumber reads an archive page number. An absent field gives 0, which
// listing treats as the first page; fractions and out-of-range values are rejected.
func PageNumber(s *structpb.Struct, key string) (int, error) {
	switch k := fields(s)[key].GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return 0, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != math.Trunc(n) || math.Abs(n) > MaxPage {
			return 0, fmt.Errorf("invalid %s %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("invalid %s", key)
	}
}

// --- entries (server -> client) ---

// EntryToStruct converts a domain entry to its wire form.
func EntryToStruct(e model.Entry) *structpb.Struct {
	f := map[string]*structpb.Value{
		"id":         structpb.NewNumberValue(float64(e.ID)),
		"title":      structpb.NewStringValue(e.Title),
		"content":    structpb.NewStringValue(e.Content),
		"created_at": ts(e.CreatedAt),
		"updated_at": ts(e.UpdatedAt),
	}
	if e.ImportSource != nil {
		f["import_source"] = structpb.NewStringValue(*e.ImportSource)
	}
	if e.ImportDate != nil {
		f["import_date"] = ts(*e.ImportDate)
	}
	return &structpb.Struct{Fields: f}
}

// EntryFromStruct converts a wire entry back to the domain.
func EntryFromStruct(s *structpb.Struct) (model.Entry, error) {
	if s == nil {
		return model.Entry{}, fmt.Errorf("nil entry")
	}
	e := model.Entry{
		ID:      Int(s, "id"),
		Title:   Str(s, "title"),
		Content: Str(s, "content"),
	}
	var err error
	if e.CreatedAt, err = Time(s, "created_at"); err != nil {
		return model.Entry{}, err
	}
	if e.UpdatedAt, err = Time(s, "updated_at"); err != nil {
		return model.Entry{}, err
	}
	if _, ok := fields(s)["import_source"]; ok {
		src := Str(s, "import_source")
		e.ImportSource = &src
	}
	if at, err := Time(s, "import_date"); err != nil {
		return model.Entry{}, err
	} else if !at.IsZero() {
		e.ImportDate = &at
	}
	return e, nil
}

// EntriesToList wraps entries into a list value.
func EntriesToList(es []model.Entry) *structpb.Value {
	vals := make([]*structpb.Value, 0, len(es))
	for _, e := range es {
		vals = append(vals, structpb.NewStructValue(EntryToStruct(e)))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

// EntriesFromList reads the list field key of s.
func EntriesFromList(s *structpb.Struct, key string) ([]model.Entry, error) {
	vals := fields(s)[key].GetListValue().GetValues()
	out := make([]model.Entry, 0, len(vals))
	for i, v := range vals {
		e, err := EntryFromStruct(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// --- save (client -> server) ---

// SaveRequestToStruct encodes a save intent.
func SaveRequestToStruct(r model.SaveRequest) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":      EntryIDValue(r.ID),
		"title":   structpb.NewStringValue(r.Title),
		"content": structpb.NewStringValue(r.Content),
	}}
}

// SaveRequestFromStruct decodes a save intent.
func SaveRequestFromStruct(s *structpb.Struct) (model.SaveRequest, error) {
	id, err := ParseEntryID(fields(s)["id"])
	if err != nil {
		return model.SaveRequest{}, err
	}
	return model.SaveRequest{ID: id, Title: Str(s, "title"), Content: Str(s, "content")}, nil
}

// --- archive page ---

// PageToStruct encodes a listing page.
func PageToStruct(p model.Page) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"items":       EntriesToList(p.Items),
		"total_count": structpb.NewNumberValue(float64(p.Total)),
		"page":        structpb.NewNumberValue(float64(p.Page)),
		"page_size":   structpb.NewNumberValue(float64(p.PageSize)),
		"total_pages": structpb.NewNumberValue(float64(p.TotalPages)),
	}}
}

// PageFromStruct decodes a listing page.
func PageFromStruct(s *structpb.Struct) (model.Page, error) {
	items, err := EntriesFromList(s, "items")
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{
		Items:      items,
		Total:      int(Int(s, "total_count")),
		Page:       int(Int(s, "page")),
		PageSize:   int(Int(s, "page_size")),
		TotalPages: int(Int(s, "total_pages")),
	}, nil
}

// --- import (client -> server) ---

// ImportToStruct encodes a legacy import batch.
func ImportToStruct(source string, entries []model.ImportedEntry) *structpb.Struct {
	vals := make([]*structpb.Value, 0, len(entries))
	for _, e := range entries {
		vals = append(vals, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"title":      structpb.NewStringValue(e.Title),
			"content":    structpb.NewStringValue(e.Content),
			"created_at": ts(e.CreatedAt),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"source":  structpb.NewStringValue(source),
		"entries": structpb.NewListValue(&structpb.ListValue{Values: vals}),
	}}
}

// ImportFromStruct decodes a legacy import batch.
func ImportFromStruct(s *structpb.Struct) (string, []model.ImportedEntry, error) {
	vals := fields(s)["entries"].GetListValue().GetValues()
	out := make([]model.ImportedEntry, 0, len(vals))
	for i, v := range vals {
		es := v.GetStructValue()
		at, err := Time(es, "created_at")
		if err != nil {
			return "", nil, fmt.Errorf("entry[%d]: %w", i, err)
		}
		out = append(out, model.ImportedEntry{Title: Str(es, "title"), Content: Str(es, "content"), CreatedAt: at})
	}
	return Str(s, "source"), out, nil
}
