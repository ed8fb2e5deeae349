package entity

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Field is a typed accessor for one payload field of P.
type Field[P any] struct {
	Name    string
	overlay func(dst, src *P) bool
}

// NewField builds a Field for a comparable value.
func NewField[P any, V comparable](name string, ref func(*P) *V) Field[P] {
	return NewFieldEq(name, ref, func(a, b V) bool { return a == b })
}

// NewFieldEq builds a Field whose values are compared with equal.
func NewFieldEq[P any, V any](name string, ref func(*P) *V, equal func(a, b V) bool) Field[P] {
	return Field[P]{
		Name: name,
		overlay: func(dst, src *P) bool {
			d, s := ref(dst), ref(src)
			if equal(*d, *s) {
				return false
			}
			*d = *s
			return true
		},
	}
}

// Overlay copies the field from src into dst when the values differ and reports
// whether dst changed.
func (f Field[P]) Overlay(dst, src *P) bool {
	return f.overlay(dst, src)
}

// Merger overlays a fixed list of fields from one payload onto another.
type Merger interface {
	// Overlay copies the configured fields of src into dst and returns the names
	// of the fields that differed. dst and src must have the same entity type.
	Overlay(dst, src Payload) ([]string, error)
	Fields() []string
}

// FieldSet is an ordered list of fields of P. It implements Merger.
type FieldSet[P any] []Field[P]

// Overlay implements Merger.
func (fs FieldSet[P]) Overlay(dst, src Payload) ([]string, error) {
	d, ok := any(dst).(*P)
	if !ok {
		return nil, fmt.Errorf("merge target is %T, not %T", dst, d)
	}
	s, ok := any(src).(*P)
	if !ok {
		return nil, fmt.Errorf("merge source is %T, not %T", src, s)
	}
	var changed []string
	for _, f := range fs {
		if f.Overlay(d, s) {
			changed = append(changed, f.Name)
		}
	}
	return changed, nil
}

// Fields implements Merger.
func (fs FieldSet[P]) Fields() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Select returns the subset of fs named by names, in the order given.
func (fs FieldSet[P]) Select(names ...string) (FieldSet[P], error) {
	out := make(FieldSet[P], 0, len(names))
	for _, name := range names {
		found := false
		for _, f := range fs {
			if f.Name == name {
				out = append(out, f)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown field %q", name)
		}
	}
	return out, nil
}

func decimalEqual(a, b decimal.Decimal) bool { return a.Equal(b) }

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Catalog of mergeable fields per entity type.
var (
	UserFields = FieldSet[UserPayload]{
		NewField("email", func(p *UserPayload) *string { return &p.Email }),
		NewField("display_name", func(p *UserPayload) *string { return &p.DisplayName }),
		NewField("role", func(p *UserPayload) *string { return &p.Role }),
		NewField("phone", func(p *UserPayload) *string { return &p.Phone }),
		NewField("active", func(p *UserPayload) *bool { return &p.Active }),
	}

	ItemFields = FieldSet[ItemPayload]{
		NewField("name", func(p *ItemPayload) *string { return &p.Name }),
		NewField("sku", func(p *ItemPayload) *string { return &p.SKU }),
		NewField("category", func(p *ItemPayload) *string { return &p.Category }),
		NewField("tag_id", func(p *ItemPayload) *string { return &p.TagID }),
		NewField("status", func(p *ItemPayload) *string { return &p.Status }),
		NewField("assignee_id", func(p *ItemPayload) *string { return &p.AssigneeID }),
		NewField("location", func(p *ItemPayload) *string { return &p.Location }),
		NewField("notes", func(p *ItemPayload) *string { return &p.Notes }),
		NewFieldEq("purchase_value", func(p *ItemPayload) *decimal.Decimal { return &p.PurchaseValue }, decimalEqual),
	}

	AssignmentFields = FieldSet[AssignmentPayload]{
		NewFieldEq("due_at", func(p *AssignmentPayload) **time.Time { return &p.DueAt }, timePtrEqual),
		NewFieldEq("returned_at", func(p *AssignmentPayload) **time.Time { return &p.ReturnedAt }, timePtrEqual),
		NewField("notes", func(p *AssignmentPayload) *string { return &p.Notes }),
	}

	ScanEventFields = FieldSet[ScanEventPayload]{
		NewField("location", func(p *ScanEventPayload) *string { return &p.Location }),
	}

	AuditLogFields = FieldSet[AuditLogPayload]{
		NewField("details", func(p *AuditLogPayload) *string { return &p.Details }),
	}
)

// DefaultMergeFields lists the locally-preferred fields used by the merge policy
// when no override is configured.
var DefaultMergeFields = map[Type][]string{
	Users:       {"display_name", "phone"},
	Items:       {"notes"},
	Assignments: {"notes"},
	ScanEvents:  {},
	AuditLogs:   {},
}

// MergerFor builds the Merger of entity type t from field names.
func MergerFor(t Type, names []string) (Merger, error) {
	var (
		m   Merger
		err error
	)
	switch t {
	case Users:
		m, err = UserFields.Select(names...)
	case Items:
		m, err = ItemFields.Select(names...)
	case Assignments:
		m, err = AssignmentFields.Select(names...)
	case ScanEvents:
		m, err = ScanEventFields.Select(names...)
	case AuditLogs:
		m, err = AuditLogFields.Select(names...)
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("%s merge fields: %w", t, err)
	}
	return m, nil
}

// Mergers builds a Merger per entity type, starting from DefaultMergeFields and
// replacing the lists named in overrides.
func Mergers(overrides map[string][]string) (map[Type]Merger, error) {
	names := make(map[Type][]string, len(DefaultMergeFields))
	for t, fields := range DefaultMergeFields {
		names[t] = fields
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t, err := ParseType(k)
		if err != nil {
			return nil, err
		}
		names[t] = overrides[k]
	}

	out := make(map[Type]Merger, len(names))
	for t, fields := range names {
		m, err := MergerFor(t, fields)
		if err != nil {
			return nil, err
		}
		out[t] = m
	}
	return out, nil
}
