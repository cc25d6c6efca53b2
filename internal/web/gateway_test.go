package web

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/partlog/internal/model"
	"github.com/JonMunkholm/partlog/internal/store"
)

// memGateway is an in-memory store.Gateway and store.Authenticator for
// handler tests. It does not scope rows by user or honor ordering.
type memGateway struct {
	mu        sync.Mutex
	rows      map[store.Collection][]store.Fields
	tokens    map[string]*model.User
	passwords map[string]string // email -> password
	signOuts  int
	deletes   [][]store.Filter

	insertErr map[store.Collection]error
	deleteErr map[store.Collection]error
	listErr   map[store.Collection]error
}

func newMemGateway() *memGateway {
	return &memGateway{
		rows:      make(map[store.Collection][]store.Fields),
		tokens:    make(map[string]*model.User),
		passwords: make(map[string]string),
		insertErr: make(map[store.Collection]error),
		deleteErr: make(map[store.Collection]error),
		listErr:   make(map[store.Collection]error),
	}
}

var (
	_ store.Gateway       = (*memGateway)(nil)
	_ store.Authenticator = (*memGateway)(nil)
)

func (g *memGateway) seed(coll store.Collection, rows ...store.Fields) {
	g.rows[coll] = append(g.rows[coll], rows...)
}

func rowMatches(row store.Fields, filters []store.Filter) bool {
	for _, f := range filters {
		v := fmt.Sprint(row[f.Column])
		ok := false
		for _, want := range f.Values {
			ok = ok || v == want
		}
		if !ok {
			return false
		}
	}
	return true
}

func (g *memGateway) List(_ context.Context, coll store.Collection, q store.Query, dst any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.listErr[coll]; err != nil {
		return err
	}
	out := []store.Fields{}
	for _, row := range g.rows[coll] {
		if rowMatches(row, q.Filters) {
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

func (g *memGateway) Insert(_ context.Context, coll store.Collection, fields store.Fields) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.insertErr[coll]; err != nil {
		return err
	}
	if _, ok := fields["id"]; !ok {
		fields["id"] = uuid.NewString()
	}
	g.rows[coll] = append(g.rows[coll], fields)
	return nil
}

func (g *memGateway) Update(_ context.Context, coll store.Collection, id string, fields store.Fields) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, row := range g.rows[coll] {
		if fmt.Sprint(row["id"]) == id {
			for k, v := range fields {
				row[k] = v
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (g *memGateway) Delete(_ context.Context, coll store.Collection, filters ...store.Filter) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.deletes = append(g.deletes, filters)
	if err := g.deleteErr[coll]; err != nil {
		return err
	}
	kept := g.rows[coll][:0]
	for _, row := range g.rows[coll] {
		if !rowMatches(row, filters) {
			kept = append(kept, row)
		}
	}
	g.rows[coll] = kept
	return nil
}

func (g *memGateway) CurrentUser(ctx context.Context) (*model.User, error) {
	sess, ok := store.SessionFromContext(ctx)
	if !ok {
		return nil, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tokens[sess.AccessToken], nil
}

func (g *memGateway) SignOut(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signOuts++
	return nil
}

func (g *memGateway) SignIn(_ context.Context, email, password string) (*store.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pw, ok := g.passwords[email]; !ok || pw != password {
		return nil, &store.Error{Code: "invalid_credentials", Message: "Invalid login credentials", Status: 400}
	}
	token := "tok-" + email
	user := &model.User{ID: uuid.NewString(), Email: email}
	g.tokens[token] = user
	return &store.Session{AccessToken: token, User: user}, nil
}
