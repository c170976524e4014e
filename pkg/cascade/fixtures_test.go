package cascade

import (
	"context"
	"errors"
	"sync"

	"github.com/agencydesk/mdconsole/pkg/collection"
	"github.com/agencydesk/mdconsole/pkg/model"
)

const testComp = int64(1)

func record(id int64, status model.Status, fields map[string]interface{}) model.Record {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return model.Record{ID: id, Status: status, CompID: testComp, Fields: fields}
}

// fakeAPI keeps a server-side copy of every endpoint and can be told to fail.
type fakeAPI struct {
	mu       sync.Mutex
	tables   map[string]map[int64]model.Record
	order    map[string][]int64
	failPath map[string]map[int64]bool
	failList bool
	patches  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tables:   make(map[string]map[int64]model.Record),
		order:    make(map[string][]int64),
		failPath: make(map[string]map[int64]bool),
	}
}

func (f *fakeAPI) seed(endpoint string, records ...model.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tables[endpoint] == nil {
		f.tables[endpoint] = make(map[int64]model.Record)
	}
	for _, r := range records {
		f.tables[endpoint][r.ID] = r.Clone()
		f.order[endpoint] = append(f.order[endpoint], r.ID)
	}
}

func (f *fakeAPI) failPatch(endpoint string, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPath[endpoint] == nil {
		f.failPath[endpoint] = make(map[int64]bool)
	}
	f.failPath[endpoint][id] = true
}

func (f *fakeAPI) Patch(_ context.Context, endpoint string, id int64, fields map[string]interface{}) (model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches++
	if f.failPath[endpoint][id] {
		return model.Record{}, errors.New("simulated network failure")
	}
	current, ok := f.tables[endpoint][id]
	if !ok {
		return model.Record{}, errors.New("not found")
	}
	updated := current.Clone()
	if status, ok := fields[model.FieldStatus].(model.Status); ok {
		updated.Status = status
	}
	f.tables[endpoint][id] = updated
	return updated.Clone(), nil
}

func (f *fakeAPI) List(_ context.Context, endpoint string) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errors.New("simulated list failure")
	}
	out := make([]model.Record, 0, len(f.order[endpoint]))
	for _, id := range f.order[endpoint] {
		out = append(out, f.tables[endpoint][id].Clone())
	}
	return out, nil
}

func (f *fakeAPI) status(endpoint string, id int64) model.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[endpoint][id].Status
}

// loadInto copies every seeded table into the store.
func (f *fakeAPI) loadInto(store *collection.Store, endpoints map[model.EntityType]string) {
	for t, endpoint := range endpoints {
		records, _ := f.List(context.Background(), endpoint)
		store.Replace(t, records)
	}
}
