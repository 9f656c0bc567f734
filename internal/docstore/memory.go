package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// UniqueSpec declares a unique index over one collection: no two documents
// for which Where holds may share the same tuple of Fields values. Fields
// that are null or absent never collide, matching the partial-index DDL.
type UniqueSpec struct {
	Collection string
	Fields     []string
	Where      func(doc map[string]any) bool
}

type memDoc struct {
	doc map[string]any
	seq int64
}

// Memory is an in-process Store with the same filter and unique-index
// semantics as PG. Tests use it in place of a database.
type Memory struct {
	mu      sync.Mutex
	data    map[string]map[string]*memDoc
	specs   []UniqueSpec
	nextSeq int64
}

var _ Store = (*Memory)(nil)

func NewMemory(specs ...UniqueSpec) *Memory {
	return &Memory{
		data:  make(map[string]map[string]*memDoc),
		specs: specs,
	}
}

func (s *Memory) FindOne(ctx context.Context, collection string, f Filter, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.sorted(collection, nil) {
		if matches(d.doc, f) {
			return reencode(d.doc, out)
		}
	}
	return ErrNoDocuments
}

func (s *Memory) FindMany(ctx context.Context, collection string, f Filter, st *Sort, skip, limit int, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []map[string]any
	for _, d := range s.sorted(collection, st) {
		if matches(d.doc, f) {
			hits = append(hits, d.doc)
		}
	}
	if skip > 0 {
		if skip >= len(hits) {
			hits = nil
		} else {
			hits = hits[skip:]
		}
	}
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return reencode(hits, out)
}

func (s *Memory) Count(ctx context.Context, collection string, f Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range s.data[collection] {
		if matches(d.doc, f) {
			n++
		}
	}
	return n, nil
}

func (s *Memory) Insert(ctx context.Context, collection, id string, doc any) error {
	m, err := toMap(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.data[collection][id]; dup {
		return ErrUniqueViolation
	}
	if err := s.checkUnique(collection, id, m); err != nil {
		return err
	}
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]*memDoc)
	}
	s.nextSeq++
	s.data[collection][id] = &memDoc{doc: m, seq: s.nextSeq}
	return nil
}

func (s *Memory) UpdateByID(ctx context.Context, collection, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[collection][id]
	if !ok {
		return ErrNoDocuments
	}
	merged := make(map[string]any, len(cur.doc)+len(patch))
	for k, v := range cur.doc {
		merged[k] = v
	}
	normalized, err := toMap(patch)
	if err != nil {
		return err
	}
	for k, v := range normalized {
		merged[k] = v
	}
	if err := s.checkUnique(collection, id, merged); err != nil {
		return err
	}
	cur.doc = merged
	return nil
}

func (s *Memory) DeleteByID(ctx context.Context, collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[collection][id]; !ok {
		return false, nil
	}
	delete(s.data[collection], id)
	return true, nil
}

func (s *Memory) DeleteMany(ctx context.Context, collection string, f Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, d := range s.data[collection] {
		if matches(d.doc, f) {
			delete(s.data[collection], id)
			n++
		}
	}
	return n, nil
}

func (s *Memory) checkUnique(collection, id string, doc map[string]any) error {
	for _, spec := range s.specs {
		if spec.Collection != collection {
			continue
		}
		if spec.Where != nil && !spec.Where(doc) {
			continue
		}
		key, ok := uniqueKey(doc, spec.Fields)
		if !ok {
			continue
		}
		for otherID, other := range s.data[collection] {
			if otherID == id {
				continue
			}
			if spec.Where != nil && !spec.Where(other.doc) {
				continue
			}
			if otherKey, ok := uniqueKey(other.doc, spec.Fields); ok && otherKey == key {
				return ErrUniqueViolation
			}
		}
	}
	return nil
}

func uniqueKey(doc map[string]any, fields []string) (string, bool) {
	key := ""
	for _, f := range fields {
		v, ok := doc[f]
		if !ok || v == nil {
			return "", false
		}
		key += scalarText(v) + "\x00"
	}
	return key, true
}

// sorted returns the collection's documents ordered by st, falling back to
// insertion order so listings are stable.
func (s *Memory) sorted(collection string, st *Sort) []*memDoc {
	out := make([]*memDoc, 0, len(s.data[collection]))
	for _, d := range s.data[collection] {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if st != nil {
			a, aok := out[i].doc[st.Field]
			b, bok := out[j].doc[st.Field]
			if aok && bok {
				as, bs := scalarText(a), scalarText(b)
				if as != bs {
					if st.Desc {
						return as > bs
					}
					return as < bs
				}
			}
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func matches(doc map[string]any, f Filter) bool {
	for field, cond := range f {
		v, ok := doc[field]
		if !ok || v == nil {
			return false
		}
		got := scalarText(v)
		switch c := cond.(type) {
		case In:
			hit := false
			for _, want := range c {
				if got == scalarText(want) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		case Ne:
			if got == scalarText(c.Value) {
				return false
			}
		default:
			if got != scalarText(cond) {
				return false
			}
		}
	}
	return true
}

// toMap round-trips through JSON so stored values use the same scalar types
// the PG implementation sees, and callers keep no aliases into the store.
func toMap(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func reencode(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
