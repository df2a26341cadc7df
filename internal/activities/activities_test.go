package activities

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/reactivities/reactivities/internal/cache"
	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/metrics"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

type fakeStore struct {
	activities map[string]*model.Activity
	users      map[string]bool
	gets       int
}

func newFakeStore(users ...string) *fakeStore {
	s := &fakeStore{activities: make(map[string]*model.Activity), users: make(map[string]bool)}
	for _, u := range users {
		s.users[u] = true
	}
	return s
}

func clone(a *model.Activity) *model.Activity {
	c := *a
	c.Attendees = append([]model.Attendee(nil), a.Attendees...)
	return &c
}

func (s *fakeStore) CreateActivity(ctx context.Context, a *model.Activity, host string) error {
	if !s.users[host] {
		return repository.ErrUserNotFound
	}
	if _, ok := s.activities[a.ID]; ok {
		return repository.ErrActivityExists
	}
	c := clone(a)
	c.HostUsername = host
	c.Attendees = []model.Attendee{{Username: host, IsHost: true}}
	s.activities[a.ID] = c
	return nil
}

func (s *fakeStore) GetActivityByID(ctx context.Context, id string) (*model.Activity, error) {
	s.gets++
	a, ok := s.activities[id]
	if !ok {
		return nil, repository.ErrActivityNotFound
	}
	return clone(a), nil
}

func (s *fakeStore) ListActivities(ctx context.Context, f repository.ActivityFilter, cursor string, limit int) ([]*model.Activity, string, error) {
	if cursor == "bad" {
		return nil, "", repository.ErrInvalidCursor
	}
	var out []*model.Activity
	for _, a := range s.activities {
		if f.IsHost && a.HostUsername != f.Username {
			continue
		}
		if f.IsGoing && !a.IsAttending(f.Username) {
			continue
		}
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, "", nil
}

func (s *fakeStore) UpdateActivity(ctx context.Context, a *model.Activity) error {
	existing, ok := s.activities[a.ID]
	if !ok {
		return repository.ErrActivityNotFound
	}
	c := clone(a)
	c.Attendees = existing.Attendees
	c.HostUsername = existing.HostUsername
	s.activities[a.ID] = c
	return nil
}

func (s *fakeStore) DeleteActivity(ctx context.Context, id string) error {
	if _, ok := s.activities[id]; !ok {
		return repository.ErrActivityNotFound
	}
	delete(s.activities, id)
	return nil
}

func (s *fakeStore) AddAttendee(ctx context.Context, id, username string, joinedAt time.Time) error {
	a, ok := s.activities[id]
	if !ok {
		return repository.ErrActivityNotFound
	}
	if !s.users[username] {
		return repository.ErrUserNotFound
	}
	a.Attendees = append(a.Attendees, model.Attendee{Username: username, JoinedAt: joinedAt})
	return nil
}

func (s *fakeStore) RemoveAttendee(ctx context.Context, id, username string) error {
	a := s.activities[id]
	for i, at := range a.Attendees {
		if at.Username == username {
			a.Attendees = append(a.Attendees[:i], a.Attendees[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotAttending
}

type fakeCache struct {
	entries map[string]*model.Activity
	neg     map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*model.Activity), neg: make(map[string]bool)}
}

func (c *fakeCache) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	a, ok := c.entries[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return clone(a), nil
}

func (c *fakeCache) SetActivity(ctx context.Context, a *model.Activity) error {
	c.entries[a.ID] = clone(a)
	delete(c.neg, a.ID)
	return nil
}

func (c *fakeCache) DeleteActivity(ctx context.Context, id string) error {
	delete(c.entries, id)
	delete(c.neg, id)
	return nil
}

func (c *fakeCache) IsNegativelyCached(ctx context.Context, id string) (bool, error) {
	return c.neg[id], nil
}

func (c *fakeCache) SetNegativeCache(ctx context.Context, id string) error {
	c.neg[id] = true
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.ActivityEvent
}

func (p *fakePublisher) PublishAsync(e model.ActivityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *fakePublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeEvents struct {
	gotLimit int
}

func (f *fakeEvents) ListByActivity(ctx context.Context, id string, limit int) ([]*model.ActivityEvent, error) {
	f.gotLimit = limit
	return []*model.ActivityEvent{{ActivityID: id, Type: model.EventActivityCreated}}, nil
}

type testEnv struct {
	store     *fakeStore
	cache     *fakeCache
	publisher *fakePublisher
	events    *fakeEvents
	recorder  *metrics.InMemoryRecorder
	mediator  *mediator.Mediator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     newFakeStore("bob", "jane", "tom"),
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
		events:    &fakeEvents{},
		recorder:  metrics.NewInMemory(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.mediator = mediator.New(mediator.Metrics(env.recorder), mediator.Validation())
	NewHandlers(env.store, env.events, env.cache, env.publisher, logger, env.recorder).Register(env.mediator)
	return env
}

func validForm() model.Activity {
	return model.Activity{
		Title:       "Past Activity 1",
		Description: "Activity 2 months ago",
		Category:    "Drinks",
		Date:        time.Date(2026, 12, 1, 19, 0, 0, 0, time.UTC),
		City:        "London",
		Venue:       "Pub",
	}
}

func send[Q, R any](t *testing.T, env *testEnv, q Q) (R, error) {
	t.Helper()
	return mediator.Send[Q, R](context.Background(), env.mediator, q)
}

func TestSave_RequiredFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := send[SaveCommand, *model.Activity](t, env, SaveCommand{Username: "bob"})
	var verr *mediator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}

	want := map[string]string{
		"title":       "The activity title is required",
		"description": "The activity description is required",
		"category":    "The activity category is required",
		"date":        "The activity date is required",
		"city":        "The activity city is required",
		"venue":       "The activity venue is required",
	}
	for field, msg := range want {
		if verr.Fields[field] != msg {
			t.Errorf("field %s = %q, want %q", field, verr.Fields[field], msg)
		}
	}
	if len(env.store.activities) != 0 {
		t.Error("invalid form must not reach the store")
	}
}

func TestSave_WithoutIDCreates(t *testing.T) {
	env := newTestEnv(t)

	got, err := send[SaveCommand, *model.Activity](t, env, SaveCommand{Activity: validForm(), Username: "bob"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(got.ID) != 36 {
		t.Errorf("generated id = %q, want a UUID", got.ID)
	}
	if got.HostUsername != "bob" || !got.IsAttending("bob") {
		t.Errorf("host = %q attendees = %+v", got.HostUsername, got.Attendees)
	}
	if got.Category != "drinks" {
		t.Errorf("category = %q, want normalized", got.Category)
	}
	if types := env.publisher.types(); len(types) != 1 || types[0] != model.EventActivityCreated {
		t.Errorf("events = %v", types)
	}
}

func TestSave_WithIDEdits(t *testing.T) {
	env := newTestEnv(t)
	created, err := send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: validForm(), Username: "bob"})
	if err != nil {
		t.Fatal(err)
	}

	form := validForm()
	form.ID = created.ID
	form.Title = "Renamed"
	edited, err := send[SaveCommand, *model.Activity](t, env, SaveCommand{Activity: form, Username: "bob"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if edited.ID != created.ID || edited.Title != "Renamed" {
		t.Errorf("edited = %+v", edited)
	}
	if len(env.store.activities) != 1 {
		t.Errorf("store has %d activities, want 1", len(env.store.activities))
	}
}

func TestCreate_Errors(t *testing.T) {
	env := newTestEnv(t)

	form := validForm()
	form.ID = "not-a-uuid"
	_, err := send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: form, Username: "bob"})
	var verr *mediator.ValidationError
	if !errors.As(err, &verr) || verr.Fields["id"] == "" {
		t.Errorf("bad id error = %v", err)
	}

	form = validForm()
	form.Category = "sports"
	_, err = send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: form, Username: "bob"})
	if !errors.As(err, &verr) || verr.Fields["category"] == "" {
		t.Errorf("bad category error = %v", err)
	}

	form = validForm()
	form.ID = "3f333df6-90a4-4fda-8dd3-9485d27cee36"
	if _, err := send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: form, Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	_, err = send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: form, Username: "bob"})
	if !errors.Is(err, ErrActivityExists) {
		t.Errorf("duplicate error = %v, want ErrActivityExists", err)
	}

	_, err = send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: validForm(), Username: "ghost"})
	if !errors.Is(err, ErrUnknownUser) {
		t.Errorf("unknown host error = %v, want ErrUnknownUser", err)
	}
}

func TestIDSpellingsShareOneActivity(t *testing.T) {
	env := newTestEnv(t)
	const canonical = "6f9619ff-8b86-d011-b42d-00c04fc964ff"
	const upper = "6F9619FF-8B86-D011-B42D-00C04FC964FF"

	form := validForm()
	form.ID = upper
	created, err := send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: form, Username: "bob"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != canonical {
		t.Errorf("stored id = %q, want %q", created.ID, canonical)
	}

	form.Title = "Renamed"
	if _, err := send[SaveCommand, *model.Activity](t, env, SaveCommand{Activity: form, Username: "bob"}); err != nil {
		t.Fatalf("Save() with upper-case id error = %v", err)
	}

	for _, id := range []string{upper, "{" + canonical + "}", "urn:uuid:" + canonical} {
		got, err := send[DetailsQuery, *model.Activity](t, env, DetailsQuery{ID: id})
		if err != nil {
			t.Errorf("Details(%q) error = %v", id, err)
			continue
		}
		if got.ID != canonical || got.Title != "Renamed" {
			t.Errorf("Details(%q) = %s %q", id, got.ID, got.Title)
		}
	}

	form.ID = "{" + canonical + "}"
	_, err = send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: form, Username: "bob"})
	if !errors.Is(err, ErrActivityExists) {
		t.Errorf("braced duplicate error = %v, want ErrActivityExists", err)
	}
	if len(env.store.activities) != 1 {
		t.Errorf("store has %d activities, want 1", len(env.store.activities))
	}

	if _, err := send[UpdateAttendanceCommand, *model.Activity](t, env, UpdateAttendanceCommand{ID: upper, Username: "jane"}); err != nil {
		t.Fatalf("attend with upper-case id error = %v", err)
	}
	if !env.store.activities[canonical].IsAttending("jane") {
		t.Error("jane should attend the canonical activity")
	}
	if _, err := send[DeleteCommand, struct{}](t, env, DeleteCommand{ID: upper, Username: "bob"}); err != nil {
		t.Fatalf("Delete() with upper-case id error = %v", err)
	}
	if len(env.store.activities) != 0 {
		t.Error("activity should be deleted")
	}
}

func TestEdit_OnlyHost(t *testing.T) {
	env := newTestEnv(t)
	created, _ := send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: validForm(), Username: "bob"})

	form := validForm()
	form.ID = created.ID
	_, err := send[EditCommand, *model.Activity](t, env, EditCommand{Activity: form, Username: "jane"})
	if !errors.Is(err, ErrNotHost) {
		t.Errorf("error = %v, want ErrNotHost", err)
	}

	form.ID = "3f333df6-90a4-4fda-8dd3-9485d27cee36"
	_, err = send[EditCommand, *model.Activity](t, env, EditCommand{Activity: form, Username: "bob"})
	if !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("error = %v, want ErrActivityNotFound", err)
	}
}

func TestDetails_CachesAndInvalidates(t *testing.T) {
	env := newTestEnv(t)
	created, _ := send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: validForm(), Username: "bob"})

	env.store.gets = 0
	for i := 0; i < 3; i++ {
		if _, err := send[DetailsQuery, *model.Activity](t, env, DetailsQuery{ID: created.ID}); err != nil {
			t.Fatal(err)
		}
	}
	if env.store.gets != 1 {
		t.Errorf("store reads = %d, want 1", env.store.gets)
	}
	snap := env.recorder.Snapshot()
	if snap.ActivityCacheHits != 2 || snap.ActivityCacheMiss != 1 {
		t.Errorf("hits=%d misses=%d", snap.ActivityCacheHits, snap.ActivityCacheMiss)
	}

	form := validForm()
	form.ID = created.ID
	form.Venue = "Theatre"
	if _, err := send[EditCommand, *model.Activity](t, env, EditCommand{Activity: form, Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	got, _ := send[DetailsQuery, *model.Activity](t, env, DetailsQuery{ID: created.ID})
	if got.Venue != "Theatre" {
		t.Errorf("venue = %q, cache not invalidated", got.Venue)
	}
}

func TestDetails_NegativeCache(t *testing.T) {
	env := newTestEnv(t)
	id := "3f333df6-90a4-4fda-8dd3-9485d27cee36"

	for i := 0; i < 2; i++ {
		if _, err := send[DetailsQuery, *model.Activity](t, env, DetailsQuery{ID: id}); !errors.Is(err, ErrActivityNotFound) {
			t.Fatalf("error = %v, want ErrActivityNotFound", err)
		}
	}
	if env.store.gets != 1 {
		t.Errorf("store reads = %d, want 1", env.store.gets)
	}

	// Creating the id clears the negative entry.
	form := validForm()
	form.ID = id
	if _, err := send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: form, Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	if _, err := send[DetailsQuery, *model.Activity](t, env, DetailsQuery{ID: id}); err != nil {
		t.Errorf("details after create: %v", err)
	}
}

func TestUpdateAttendance(t *testing.T) {
	env := newTestEnv(t)
	created, _ := send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: validForm(), Username: "bob"})
	toggle := func(user string) (*model.Activity, error) {
		return send[UpdateAttendanceCommand, *model.Activity](t, env, UpdateAttendanceCommand{ID: created.ID, Username: user})
	}

	got, err := toggle("jane")
	if err != nil || !got.IsAttending("jane") {
		t.Fatalf("join: %v attendees=%+v", err, got)
	}
	got, err = toggle("jane")
	if err != nil || got.IsAttending("jane") {
		t.Fatalf("leave: %v attendees=%+v", err, got)
	}

	got, err = toggle("bob")
	if err != nil || !got.IsCancelled {
		t.Fatalf("cancel: %v activity=%+v", err, got)
	}
	if _, err := toggle("tom"); !errors.Is(err, ErrActivityCancelled) {
		t.Errorf("join cancelled: %v, want ErrActivityCancelled", err)
	}
	got, err = toggle("bob")
	if err != nil || got.IsCancelled {
		t.Fatalf("reactivate: %v activity=%+v", err, got)
	}

	want := []model.EventType{
		model.EventActivityCreated,
		model.EventAttendanceJoined,
		model.EventAttendanceLeft,
		model.EventActivityCancelled,
		model.EventActivityReactivated,
	}
	types := env.publisher.types()
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	created, _ := send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: validForm(), Username: "bob"})

	if _, err := send[DeleteCommand, struct{}](t, env, DeleteCommand{ID: created.ID, Username: "jane"}); !errors.Is(err, ErrNotHost) {
		t.Errorf("error = %v, want ErrNotHost", err)
	}
	if _, err := send[DeleteCommand, struct{}](t, env, DeleteCommand{ID: created.ID, Username: "bob"}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := send[DetailsQuery, *model.Activity](t, env, DetailsQuery{ID: created.ID}); !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("details after delete: %v", err)
	}
	if env.recorder.Snapshot().Mutations["deleted"] != 1 {
		t.Error("delete not counted")
	}
}

func TestList(t *testing.T) {
	env := newTestEnv(t)

	result, err := send[ListQuery, *ListResult](t, env, ListQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Activities) != 0 {
		t.Errorf("empty store returned %d activities", len(result.Activities))
	}

	later := validForm()
	later.Date = later.Date.Add(48 * time.Hour)
	send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: later, Username: "bob"})
	send[CreateCommand, *model.Activity](t, env, CreateCommand{Activity: validForm(), Username: "jane"})

	result, err = send[ListQuery, *ListResult](t, env, ListQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Activities) != 2 || result.Activities[0].HostUsername != "jane" {
		t.Errorf("list = %+v, want both ordered by date", result.Activities)
	}

	result, _ = send[ListQuery, *ListResult](t, env, ListQuery{Username: "bob", IsHost: true})
	if len(result.Activities) != 1 || result.Activities[0].HostUsername != "bob" {
		t.Errorf("is_host list = %+v", result.Activities)
	}

	if _, err := send[ListQuery, *ListResult](t, env, ListQuery{Cursor: "bad", Limit: 10}); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("error = %v, want ErrInvalidCursor", err)
	}

	var verr *mediator.ValidationError
	if _, err := send[ListQuery, *ListResult](t, env, ListQuery{Limit: 1000}); !errors.As(err, &verr) {
		t.Errorf("error = %v, want ValidationError", err)
	}
	if _, err := send[ListQuery, *ListResult](t, env, ListQuery{IsGoing: true}); !errors.As(err, &verr) {
		t.Errorf("anonymous is_going error = %v, want ValidationError", err)
	}

	if env.recorder.Snapshot().Requests["activities.ListQuery:success"] < 3 {
		t.Errorf("requests = %v", env.recorder.Snapshot().Requests)
	}
}

func TestEvents_DefaultLimit(t *testing.T) {
	env := newTestEnv(t)

	events, err := send[EventsQuery, []*model.ActivityEvent](t, env, EventsQuery{ActivityID: "a1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || env.events.gotLimit != defaultEventLimit {
		t.Errorf("events=%d limit=%d", len(events), env.events.gotLimit)
	}
}
