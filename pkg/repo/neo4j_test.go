package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// --- Mock infrastructure ---

type mockResult struct {
	records []*neo4j.Record
	idx     int
}

func (m *mockResult) Next(ctx context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record {
	return m.records[m.idx-1]
}

type mockRunner struct {
	result  *mockResult
	err     error
	cyphers []string
	params  []map[string]any
}

func (m *mockRunner) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	m.cyphers = append(m.cyphers, cypher)
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockRunner) Close(ctx context.Context) error { return nil }

type fakeDriver struct {
	neo4j.DriverWithContext
	cfg neo4j.SessionConfig
}

type fakeSession struct {
	neo4j.SessionWithContext
}

func (d *fakeDriver) NewSession(_ context.Context, cfg neo4j.SessionConfig) neo4j.SessionWithContext {
	d.cfg = cfg
	return &fakeSession{}
}

type entity struct {
	ID   string
	Name string
}

func makeRecord(id, name string) *neo4j.Record {
	return &neo4j.Record{
		Values: []any{map[string]any{"id": id, "name": name}},
		Keys:   []string{"n"},
	}
}

func newTestRepo(r *mockRunner) *Neo4jRepo[entity, string] {
	repo := NewNeo4jRepo[entity, string](
		nil, "Entity",
		func(e entity) map[string]any { return map[string]any{"id": e.ID, "name": e.Name} },
		func(p map[string]any) (entity, error) {
			id, _ := p["id"].(string)
			name, _ := p["name"].(string)
			return entity{ID: id, Name: name}, nil
		},
	)
	repo.newSession = func(ctx context.Context) runner { return r }
	return repo
}

// --- Tests ---

func TestOptions(t *testing.T) {
	r := NewNeo4jRepo[entity, string](nil, "Node", nil, nil,
		WithIDKey[entity, string]("uuid"), WithDatabase[entity, string]("evals"))
	if r.idKey != "uuid" || r.database != "evals" {
		t.Fatalf("options not applied: %+v", r)
	}
	if NewNeo4jRepo[entity, string](nil, "Node", nil, nil).idKey != "id" {
		t.Fatal("expected default idKey=id")
	}
}

func TestSessionUsesDriver(t *testing.T) {
	fd := &fakeDriver{}
	r := NewNeo4jRepo[entity, string](fd, "Node", nil, nil, WithDatabase[entity, string]("evals"))
	if _, ok := r.session(context.Background()).(*neo4jSessionAdapter); !ok {
		t.Fatal("expected neo4jSessionAdapter")
	}
	if fd.cfg.DatabaseName != "evals" {
		t.Fatalf("database = %q", fd.cfg.DatabaseName)
	}
}

func TestGet(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("1", "Alice")}}}
	e, err := newTestRepo(r).Get(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "1" || e.Name != "Alice" {
		t.Fatalf("got %+v", e)
	}
}

func TestGetNodeValue(t *testing.T) {
	rec := &neo4j.Record{Values: []any{neo4j.Node{Props: map[string]any{"id": "7", "name": "Node"}}}, Keys: []string{"n"}}
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{rec}}}
	e, err := newTestRepo(r).Get(context.Background(), "7")
	if err != nil || e.Name != "Node" {
		t.Fatalf("got %+v, %v", e, err)
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := newTestRepo(&mockRunner{result: &mockResult{}}).Get(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRunError(t *testing.T) {
	boom := errors.New("db down")
	_, err := newTestRepo(&mockRunner{err: boom}).Get(context.Background(), "x")
	if !errors.Is(err, boom) {
		t.Fatalf("expected db down, got %v", err)
	}
}

func TestList(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("1", "A"), makeRecord("2", "B")}}}
	items, err := newTestRepo(r).List(context.Background(), ListOpts{Limit: 10, OrderBy: "created_at", Desc: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	if !strings.Contains(r.cyphers[0], "ORDER BY n.created_at DESC") {
		t.Errorf("cypher = %s", r.cyphers[0])
	}
	if r.params[0]["limit"] != 10 {
		t.Errorf("limit = %v", r.params[0]["limit"])
	}
}

func TestListDefaults(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	items, err := newTestRepo(r).List(context.Background(), ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
	if r.params[0]["limit"] != DefaultListLimit || strings.Contains(r.cyphers[0], "ORDER BY") {
		t.Errorf("unexpected query %s %v", r.cyphers[0], r.params[0])
	}
}

func TestListRejectsInjectedOrder(t *testing.T) {
	r := &mockRunner{result: &mockResult{}}
	if _, err := newTestRepo(r).List(context.Background(), ListOpts{OrderBy: "x RETURN 1 //"}); err == nil {
		t.Fatal("expected error")
	}
	if len(r.cyphers) != 0 {
		t.Fatal("query must not run")
	}
}

func TestListDecodeError(t *testing.T) {
	bad := &neo4j.Record{Values: []any{"not a map"}, Keys: []string{"n"}}
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{bad}}}
	if _, err := newTestRepo(r).List(context.Background(), ListOpts{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSave(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("3", "C")}}}
	e, err := newTestRepo(r).Save(context.Background(), entity{ID: "3", Name: "C"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Name != "C" {
		t.Fatalf("got %+v", e)
	}
	if !strings.HasPrefix(r.cyphers[0], "MERGE (n:Entity {id: $id})") || r.params[0]["id"] != "3" {
		t.Errorf("unexpected query %s %v", r.cyphers[0], r.params[0])
	}
}

func TestSaveErrors(t *testing.T) {
	if _, err := newTestRepo(&mockRunner{err: errors.New("fail")}).Save(context.Background(), entity{}); err == nil {
		t.Fatal("expected run error")
	}
	if _, err := newTestRepo(&mockRunner{result: &mockResult{}}).Save(context.Background(), entity{}); err == nil {
		t.Fatal("expected no-result error")
	}
}
