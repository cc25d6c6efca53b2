package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JonMunkholm/partlog/internal/model"
	"github.com/JonMunkholm/partlog/internal/store"
)

type deleteCall struct {
	coll    store.Collection
	filters []store.Filter
}

type updateCall struct {
	coll   store.Collection
	id     string
	fields store.Fields
}

// fakeStore is an in-memory store.Gateway. Rows are kept in insertion order
// and List ignores ordering.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[store.Collection][]store.Fields
	inserts []insertCall
	updates []updateCall
	deletes []deleteCall

	listErr   map[store.Collection]error
	insertErr func(coll store.Collection, f store.Fields) error
	updateErr error
	deleteErr map[store.Collection]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:      make(map[store.Collection][]store.Fields),
		listErr:   make(map[store.Collection]error),
		deleteErr: make(map[store.Collection]error),
	}
}

var _ store.Gateway = (*fakeStore)(nil)

func (f *fakeStore) seed(coll store.Collection, rows ...store.Fields) {
	f.rows[coll] = append(f.rows[coll], rows...)
}

func matches(row store.Fields, filters []store.Filter) bool {
	for _, flt := range filters {
		v := fmt.Sprint(row[flt.Column])
		ok := false
		for _, want := range flt.Values {
			if v == want {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (f *fakeStore) List(_ context.Context, coll store.Collection, q store.Query, dst any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.listErr[coll]; err != nil {
		return err
	}
	out := []store.Fields{}
	for _, row := range f.rows[coll] {
		if matches(row, q.Filters) {
			out = append(out, row)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func (f *fakeStore) Insert(_ context.Context, coll store.Collection, fields store.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inserts = append(f.inserts, insertCall{coll: coll, fields: fields})
	if f.insertErr != nil {
		if err := f.insertErr(coll, fields); err != nil {
			return err
		}
	}
	f.rows[coll] = append(f.rows[coll], fields)
	return nil
}

func (f *fakeStore) Update(_ context.Context, coll store.Collection, id string, fields store.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, updateCall{coll: coll, id: id, fields: fields})
	return f.updateErr
}

func (f *fakeStore) Delete(_ context.Context, coll store.Collection, filters ...store.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, deleteCall{coll: coll, filters: filters})
	if err := f.deleteErr[coll]; err != nil {
		return err
	}
	kept := f.rows[coll][:0]
	for _, row := range f.rows[coll] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	f.rows[coll] = kept
	return nil
}

func (f *fakeStore) CurrentUser(ctx context.Context) (*model.User, error) {
	return store.UserFromContext(ctx), nil
}

func (f *fakeStore) SignOut(context.Context) error { return nil }
