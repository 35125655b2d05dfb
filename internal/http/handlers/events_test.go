package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventbooking/bookingcore/internal/domain/event"
	"github.com/eventbooking/bookingcore/internal/http/handlers"
)

// Fake repository implementation of the handlers.EventsStore interface

type fakeEventsRepo struct {
	createFn       func(ctx context.Context, req event.CreateEventRequest) (event.Event, error)
	getFn          func(ctx context.Context, id string) (event.Event, error)
	listFn         func(ctx context.Context, filter event.ListEventsFilter) ([]event.Event, int, error)
	updateFn       func(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	updateStatusFn func(ctx context.Context, id string, next event.Status) (event.Event, error)
	deleteFn       func(ctx context.Context, id string) error
}

func (f *fakeEventsRepo) Create(ctx context.Context, req event.CreateEventRequest) (event.Event, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}

	return event.Event{}, nil
}

func (f *fakeEventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}

	return event.Event{}, nil
}

func (f *fakeEventsRepo) List(ctx context.Context, filter event.ListEventsFilter) ([]event.Event, int, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}

	return nil, 0, nil
}

func (f *fakeEventsRepo) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}

	return event.Event{}, nil
}

func (f *fakeEventsRepo) UpdateStatus(ctx context.Context, id string, next event.Status) (event.Event, error) {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, next)
	}

	return event.Event{}, nil
}

func (f *fakeEventsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}

	return nil
}

type fakeAvailability struct {
	availableFn func(ctx context.Context, eventID string) (int, error)
}

func (f *fakeAvailability) AvailableSeats(ctx context.Context, eventID string) (int, error) {
	if f.availableFn != nil {
		return f.availableFn(ctx, eventID)
	}

	return 0, nil
}

// small helper which returns a gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func doGet(r *gin.Engine, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestGetAvailabilityHandler(t *testing.T) {
	eventID := newUUID()

	tests := []struct {
		name           string
		url            string
		availableFn    func(ctx context.Context, eventID string) (int, error)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/events/" + eventID + "/availability",
			availableFn: func(context.Context, string) (int, error) {
				return 7, nil
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid_id",
			url:            "/events/not-a-uuid/availability",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "unknown_event",
			url:  "/events/" + eventID + "/availability",
			availableFn: func(context.Context, string) (int, error) {
				return 0, event.ErrNotFound
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "repo_error",
			url:  "/events/" + eventID + "/availability",
			availableFn: func(context.Context, string) (int, error) {
				return 0, errors.New("db error")
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewEventsHandler(&fakeEventsRepo{}, &fakeAvailability{availableFn: tt.availableFn}, nil)

			r := setupRouter(http.MethodGet, "/events/:id/availability", h.GetAvailability)

			w := doGet(r, tt.url)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestListEventsFilterValidation(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		wantStatusCode int
	}{
		{name: "defaults", url: "/events", wantStatusCode: http.StatusOK},
		{name: "good_filters", url: "/events?category=CONCERT&status=PUBLISHED&city=Lisbon&limit=50", wantStatusCode: http.StatusOK},
		{name: "unknown_category", url: "/events?category=OPERA", wantStatusCode: http.StatusBadRequest},
		{name: "unknown_status", url: "/events?status=OPEN", wantStatusCode: http.StatusBadRequest},
		{name: "limit_too_big", url: "/events?limit=500", wantStatusCode: http.StatusBadRequest},
		{name: "negative_offset", url: "/events?offset=-1", wantStatusCode: http.StatusBadRequest},
		{name: "bad_from", url: "/events?from=yesterday", wantStatusCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeEventsRepo{
				listFn: func(_ context.Context, filter event.ListEventsFilter) ([]event.Event, int, error) {
					return []event.Event{}, 0, nil
				},
			}

			h := handlers.NewEventsHandler(repo, &fakeAvailability{}, nil)
			r := setupRouter(http.MethodGet, "/events", h.ListEvents)

			w := doGet(r, tt.url)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestPublishEventHandler(t *testing.T) {
	eventID := newUUID()

	tests := []struct {
		name           string
		repoSetUp      func(*fakeEventsRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			repoSetUp: func(f *fakeEventsRepo) {
				f.updateStatusFn = func(_ context.Context, id string, next event.Status) (event.Event, error) {
					if next != event.StatusPublished {
						return event.Event{}, errors.New("wrong target status")
					}
					return event.Event{ID: id, Status: next, StartAt: time.Now().Add(time.Hour)}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "already_finished",
			repoSetUp: func(f *fakeEventsRepo) {
				f.updateStatusFn = func(context.Context, string, event.Status) (event.Event, error) {
					return event.Event{}, event.ErrInvalidStatusChange
				}
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			name: "not_found",
			repoSetUp: func(f *fakeEventsRepo) {
				f.updateStatusFn = func(context.Context, string, event.Status) (event.Event, error) {
					return event.Event{}, event.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeEventsRepo{}
			tt.repoSetUp(repo)

			h := handlers.NewEventsHandler(repo, &fakeAvailability{}, nil)
			r := setupRouter(http.MethodPost, "/events/:id/publish", h.PublishEvent)

			req := httptest.NewRequest(http.MethodPost, "/events/"+eventID+"/publish", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestDeleteEventHandler(t *testing.T) {
	eventID := newUUID()

	tests := []struct {
		name           string
		url            string
		repoSetUp      func(*fakeEventsRepo)
		wantStatusCode int
	}{
		{
			name:           "success",
			url:            "/events/" + eventID,
			repoSetUp:      func(f *fakeEventsRepo) {},
			wantStatusCode: http.StatusNoContent,
		},
		{
			name: "has_reservations",
			url:  "/events/" + eventID,
			repoSetUp: func(f *fakeEventsRepo) {
				f.deleteFn = func(context.Context, string) error {
					return event.ErrHasReservations
				}
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			name: "not_found",
			url:  "/events/" + eventID,
			repoSetUp: func(f *fakeEventsRepo) {
				f.deleteFn = func(context.Context, string) error {
					return event.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "invalid_id",
			url:            "/events/42",
			repoSetUp:      func(f *fakeEventsRepo) {},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeEventsRepo{}
			tt.repoSetUp(repo)

			h := handlers.NewEventsHandler(repo, &fakeAvailability{}, nil)
			r := setupRouter(http.MethodDelete, "/events/:id", h.DeleteEvent)

			req := httptest.NewRequest(http.MethodDelete, tt.url, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}
