// Package mem is an in-memory implementation of the datastore interfaces.
//
// It exists for tests and for running the pipeline without a database. The
// semantics mirror the postgres implementation: upserts, set-difference edge
// reconciliation, and clamped paging.
package mem

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stackrook/vulnmirror"
	"github.com/stackrook/vulnmirror/datastore"
)

type productKey struct {
	vendor uuid.UUID
	name   string
}

type kbKey struct {
	name   string
	source string
}

// Store implements [datastore.Store] over process memory.
type Store struct {
	mu       sync.Mutex
	cves     map[string]*vulnmirror.CVE
	cwes     map[int]*vulnmirror.CWE
	vendors  map[string]*vulnmirror.Vendor
	products map[productKey]*vulnmirror.Product
	kbs      map[kbKey]*vulnmirror.KB
	cveProd  map[string]map[uuid.UUID]struct{}
	cveKB    map[string]map[uuid.UUID]struct{}
}

var _ datastore.Store = (*Store)(nil)

// New reports an empty Store.
func New() *Store {
	return &Store{
		cves:     make(map[string]*vulnmirror.CVE),
		cwes:     make(map[int]*vulnmirror.CWE),
		vendors:  make(map[string]*vulnmirror.Vendor),
		products: make(map[productKey]*vulnmirror.Product),
		kbs:      make(map[kbKey]*vulnmirror.KB),
		cveProd:  make(map[string]map[uuid.UUID]struct{}),
		cveKB:    make(map[string]map[uuid.UUID]struct{}),
	}
}

// CreateCVE implements [datastore.CVEStore].
func (s *Store) CreateCVE(_ context.Context, rec *vulnmirror.CVE) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cves[rec.ID]; ok {
		return nil
	}
	cp := *rec
	cp.Translated = false
	s.cves[rec.ID] = &cp
	return nil
}

// CreateOrUpdateCVE implements [datastore.CVEStore].
func (s *Store) CreateOrUpdateCVE(_ context.Context, rec *vulnmirror.CVE) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.Translated = false
	s.cves[rec.ID] = &cp
	return nil
}

// UpdateTranslated implements [datastore.CVEStore].
func (s *Store) UpdateTranslated(_ context.Context, id, lang, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cves[id]
	if !ok {
		return datastore.ErrNotFound
	}
	found := false
	for i := range rec.Descriptions {
		if rec.Descriptions[i].Lang == lang {
			rec.Descriptions[i].Value = value
			found = true
			break
		}
	}
	if !found {
		rec.Descriptions = append(rec.Descriptions, vulnmirror.Description{Lang: lang, Value: value})
	}
	rec.Translated = true
	return nil
}

// GetCVE implements [datastore.CVEStore].
func (s *Store) GetCVE(_ context.Context, id string) (*vulnmirror.CVE, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cves[id]
	if !ok {
		return nil, datastore.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// QueryCVEs implements [datastore.CVEStore].
//
// The vendor/product filters need the dictionary rows, so they resolve
// through the same edge set the postgres joins walk.
func (s *Store) QueryCVEs(_ context.Context, q datastore.CVEQuery) ([]vulnmirror.CVE, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, rec := range s.cves {
		if q.ID != "" && rec.ID != q.ID {
			continue
		}
		if q.Year != 0 && rec.Year != q.Year {
			continue
		}
		if q.Translated != nil && rec.Translated != *q.Translated {
			continue
		}
		if q.Severity != nil && rec.Severity != *q.Severity {
			continue
		}
		if (q.Vendor != "" || q.Product != "") && !s.edgeMatch(id, q.Vendor, q.Product) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if !q.Ascending {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
	page := q.Page.Clamp()
	lo, hi := page.Offset(), page.Offset()+page.Size
	if lo > len(ids) {
		lo = len(ids)
	}
	if hi > len(ids) {
		hi = len(ids)
	}
	out := make([]vulnmirror.CVE, 0, hi-lo)
	for _, id := range ids[lo:hi] {
		out = append(out, *s.cves[id])
	}
	return out, nil
}

func (s *Store) edgeMatch(cveID, vendor, product string) bool {
	for pid := range s.cveProd[cveID] {
		for _, p := range s.products {
			if p.ID != pid {
				continue
			}
			if product != "" && p.Name != product {
				continue
			}
			if vendor != "" {
				v := s.vendorByID(p.VendorID)
				if v == nil || v.Name != vendor {
					continue
				}
			}
			return true
		}
	}
	return false
}

func (s *Store) vendorByID(id uuid.UUID) *vulnmirror.Vendor {
	for _, v := range s.vendors {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// CreateOrUpdateCWE implements [datastore.CWEStore].
func (s *Store) CreateOrUpdateCWE(_ context.Context, rec *vulnmirror.CWE) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	if old, ok := s.cwes[rec.ID]; ok {
		if cp.NameZH == "" {
			cp.NameZH = old.NameZH
		}
		if cp.DescriptionZH == "" {
			cp.DescriptionZH = old.DescriptionZH
		}
		if cp.Remediation == "" {
			cp.Remediation = old.Remediation
		}
	}
	s.cwes[rec.ID] = &cp
	return nil
}

// GetCWE implements [datastore.CWEStore].
func (s *Store) GetCWE(_ context.Context, id int) (*vulnmirror.CWE, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cwes[id]
	if !ok {
		return nil, datastore.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// QueryCWEs implements [datastore.CWEStore].
func (s *Store) QueryCWEs(_ context.Context, q datastore.CWEQuery) ([]vulnmirror.CWE, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []vulnmirror.CWE
	for _, rec := range s.cwes {
		if q.Keyword != "" &&
			!strings.Contains(strings.ToLower(rec.Name), strings.ToLower(q.Keyword)) &&
			!strings.Contains(rec.NameZH, q.Keyword) {
			continue
		}
		matched = append(matched, *rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return pageSlice(matched, q.Page), nil
}

// VendorQueryOrCreate implements [datastore.VendorStore].
func (s *Store) VendorQueryOrCreate(_ context.Context, name string) (*vulnmirror.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vendors[name]; ok {
		cp := *v
		return &cp, nil
	}
	v := &vulnmirror.Vendor{ID: uuid.New(), Name: name}
	s.vendors[name] = v
	cp := *v
	return &cp, nil
}

// GetVendor implements [datastore.VendorStore].
func (s *Store) GetVendor(_ context.Context, name string) (*vulnmirror.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[name]
	if !ok {
		return nil, datastore.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

// ProductQueryOrCreate implements [datastore.ProductStore].
//
// Identity is (vendor_id, name); part is kept from the first observation.
func (s *Store) ProductQueryOrCreate(_ context.Context, vendorID uuid.UUID, name, part string) (*vulnmirror.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := productKey{vendor: vendorID, name: name}
	if p, ok := s.products[k]; ok {
		cp := *p
		return &cp, nil
	}
	p := &vulnmirror.Product{ID: uuid.New(), VendorID: vendorID, Name: name, Part: part}
	s.products[k] = p
	cp := *p
	return &cp, nil
}

// QueryProducts implements [datastore.ProductStore].
func (s *Store) QueryProducts(_ context.Context, q datastore.ProductQuery) ([]vulnmirror.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []vulnmirror.Product
	for _, p := range s.products {
		if q.VendorID != uuid.Nil && p.VendorID != q.VendorID {
			continue
		}
		if q.Name != "" && p.Name != q.Name {
			continue
		}
		matched = append(matched, *p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return pageSlice(matched, q.Page), nil
}

// CreateOrUpdateKB implements [datastore.KBStore].
func (s *Store) CreateOrUpdateKB(_ context.Context, rec *vulnmirror.KB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := kbKey{name: rec.Name, source: rec.Source}
	cp := *rec
	if old, ok := s.kbs[k]; ok {
		cp.ID = old.ID
	} else if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	s.kbs[k] = &cp
	rec.ID = cp.ID
	return nil
}

// DeleteKB implements [datastore.KBStore].
func (s *Store) DeleteKB(_ context.Context, name, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := kbKey{name: name, source: source}
	rec, ok := s.kbs[k]
	if !ok {
		return nil
	}
	for _, set := range s.cveKB {
		delete(set, rec.ID)
	}
	delete(s.kbs, k)
	return nil
}

// QueryKBs implements [datastore.KBStore].
func (s *Store) QueryKBs(_ context.Context, q datastore.KBQuery) ([]vulnmirror.KB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var linked map[uuid.UUID]struct{}
	if q.CVE != "" {
		linked = s.cveKB[q.CVE]
	}
	var matched []vulnmirror.KB
	for _, rec := range s.kbs {
		if q.CVE != "" {
			if _, ok := linked[rec.ID]; !ok {
				continue
			}
		}
		if q.Name != "" && rec.Name != q.Name {
			continue
		}
		if q.Source != "" && rec.Source != q.Source {
			continue
		}
		if q.Verified != nil && rec.Verified != *q.Verified {
			continue
		}
		matched = append(matched, *rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name > matched[j].Name })
	return pageSlice(matched, q.Page), nil
}

// CVEProducts implements [datastore.EdgeStore].
func (s *Store) CVEProducts(_ context.Context, cveID string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return idSet(s.cveProd[cveID]), nil
}

// ReplaceCVEProducts implements [datastore.EdgeStore].
func (s *Store) ReplaceCVEProducts(_ context.Context, cveID string, products []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[uuid.UUID]struct{}, len(products))
	for _, id := range products {
		next[id] = struct{}{}
	}
	s.cveProd[cveID] = next
	return nil
}

// LinkKB implements [datastore.EdgeStore].
func (s *Store) LinkKB(_ context.Context, cveID string, kbID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.cveKB[cveID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.cveKB[cveID] = set
	}
	set[kbID] = struct{}{}
	return nil
}

// CVEKBs implements [datastore.EdgeStore].
func (s *Store) CVEKBs(_ context.Context, cveID string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return idSet(s.cveKB[cveID]), nil
}

func idSet(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func pageSlice[T any](in []T, p datastore.Page) []T {
	p = p.Clamp()
	lo, hi := p.Offset(), p.Offset()+p.Size
	if lo > len(in) {
		lo = len(in)
	}
	if hi > len(in) {
		hi = len(in)
	}
	return in[lo:hi]
}
