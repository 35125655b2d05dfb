package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eventbooking/bookingcore/internal/auth"
	"github.com/eventbooking/bookingcore/internal/domain/event"
	"github.com/eventbooking/bookingcore/internal/domain/reservation"
	"github.com/eventbooking/bookingcore/internal/http/handlers"
	"github.com/eventbooking/bookingcore/internal/http/middlewares"
	"github.com/eventbooking/bookingcore/internal/utils"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}

// fake verifier so routes behind RequireAuth can be tested without minting
// real tokens

type fakeVerifier struct {
	claims *auth.Claims
}

func (f *fakeVerifier) VerifyAccessToken(string) (*auth.Claims, error) {
	if f.claims == nil {
		return nil, errors.New("bad token")
	}

	return f.claims, nil
}

// Fake repository implementation of the handlers.ReservationsStore interface

type fakeReservationsRepo struct {
	createFn      func(ctx context.Context, req reservation.CreateReservationRequest) (reservation.Reservation, error)
	confirmFn     func(ctx context.Context, id string) (reservation.Reservation, error)
	cancelFn      func(ctx context.Context, id, reason string) (reservation.Reservation, error)
	getFn         func(ctx context.Context, id string) (reservation.Reservation, error)
	getByCodeFn   func(ctx context.Context, code string) (reservation.Reservation, error)
	listFn        func(ctx context.Context, filter reservation.ListFilter) ([]reservation.Reservation, int, error)
	listForUserFn func(ctx context.Context, userID, scope string) ([]reservation.Reservation, error)
	listByEventFn func(ctx context.Context, eventID string, limit int, afterCreatedAt time.Time, afterID string) ([]reservation.Reservation, *string, bool, error)
}

func (f *fakeReservationsRepo) Create(ctx context.Context, req reservation.CreateReservationRequest) (reservation.Reservation, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}

	return reservation.Reservation{}, nil
}

func (f *fakeReservationsRepo) Confirm(ctx context.Context, id string) (reservation.Reservation, error) {
	if f.confirmFn != nil {
		return f.confirmFn(ctx, id)
	}

	return reservation.Reservation{}, nil
}

func (f *fakeReservationsRepo) Cancel(ctx context.Context, id, reason string) (reservation.Reservation, error) {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, id, reason)
	}

	return reservation.Reservation{}, nil
}

func (f *fakeReservationsRepo) GetByID(ctx context.Context, id string) (reservation.Reservation, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}

	return reservation.Reservation{}, nil
}

func (f *fakeReservationsRepo) GetByCode(ctx context.Context, code string) (reservation.Reservation, error) {
	if f.getByCodeFn != nil {
		return f.getByCodeFn(ctx, code)
	}

	return reservation.Reservation{}, nil
}

func (f *fakeReservationsRepo) List(ctx context.Context, filter reservation.ListFilter) ([]reservation.Reservation, int, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}

	return nil, 0, nil
}

func (f *fakeReservationsRepo) ListForUser(ctx context.Context, userID, scope string) ([]reservation.Reservation, error) {
	if f.listForUserFn != nil {
		return f.listForUserFn(ctx, userID, scope)
	}

	return nil, nil
}

func (f *fakeReservationsRepo) ListByEventCursor(ctx context.Context, eventID string, limit int, afterCreatedAt time.Time, afterID string) ([]reservation.Reservation, *string, bool, error) {
	if f.listByEventFn != nil {
		return f.listByEventFn(ctx, eventID, limit, afterCreatedAt, afterID)
	}

	return nil, nil, false, nil
}

// mounts one handler behind the auth middleware, the way the router does

func setupAuthedRouter(method, path string, claims *auth.Claims, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	authmw := middlewares.NewAuthMiddleware(&fakeVerifier{claims: claims})

	r.Handle(method, path, authmw.RequireAuth(), h)

	return r
}

func clientClaims(userID string) *auth.Claims {
	return &auth.Claims{UserID: userID, Email: "client@example.com", Role: "client", TokenType: "access"}
}

func doJSON(r *gin.Engine, method, url, body string) *httptest.ResponseRecorder {
	var req *http.Request

	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	req.Header.Set("Authorization", "Bearer test-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("could not decode error envelope: %v, body=%s", err, w.Body.String())
	}

	return envelope.Error.Code
}

func TestCreateReservationHandler(t *testing.T) {
	userID := newUUID()
	eventID := newUUID()

	validBody := `{"eventId": "` + eventID + `", "seats": 2}`

	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeReservationsRepo)
		wantStatusCode int
		wantErrorCode  string
	}{
		{
			name: "success",
			body: validBody,
			repoSetUp: func(f *fakeReservationsRepo) {
				f.createFn = func(ctx context.Context, req reservation.CreateReservationRequest) (reservation.Reservation, error) {
					if req.UserID != userID {
						return reservation.Reservation{}, errors.New("identity not forwarded from token")
					}

					return reservation.Reservation{
						ID:      newUUID(),
						Code:    "RES-2603011200-042",
						EventID: req.EventID,
						UserID:  req.UserID,
						Seats:   req.Seats,
						Amount:  200,
						Status:  reservation.StatusPending,
					}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "seats_out_of_range",
			body:           `{"eventId": "` + eventID + `", "seats": 11}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "missing_event_id",
			body:           `{"seats": 2}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "capacity_exceeded",
			body: validBody,
			repoSetUp: func(f *fakeReservationsRepo) {
				f.createFn = func(context.Context, reservation.CreateReservationRequest) (reservation.Reservation, error) {
					return reservation.Reservation{}, reservation.ErrCapacityExceeded
				}
			},
			wantStatusCode: http.StatusConflict,
			wantErrorCode:  "capacity_exceeded",
		},
		{
			name: "duplicate_booking",
			body: validBody,
			repoSetUp: func(f *fakeReservationsRepo) {
				f.createFn = func(context.Context, reservation.CreateReservationRequest) (reservation.Reservation, error) {
					return reservation.Reservation{}, reservation.ErrDuplicateBooking
				}
			},
			wantStatusCode: http.StatusConflict,
			wantErrorCode:  "already_booked",
		},
		{
			name: "event_not_bookable",
			body: validBody,
			repoSetUp: func(f *fakeReservationsRepo) {
				f.createFn = func(context.Context, reservation.CreateReservationRequest) (reservation.Reservation, error) {
					return reservation.Reservation{}, reservation.ErrEventNotBookable
				}
			},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantErrorCode:  "event_not_bookable",
		},
		{
			name: "event_not_found",
			body: validBody,
			repoSetUp: func(f *fakeReservationsRepo) {
				f.createFn = func(context.Context, reservation.CreateReservationRequest) (reservation.Reservation, error) {
					return reservation.Reservation{}, event.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "code_generation_exhausted",
			body: validBody,
			repoSetUp: func(f *fakeReservationsRepo) {
				f.createFn = func(context.Context, reservation.CreateReservationRequest) (reservation.Reservation, error) {
					return reservation.Reservation{}, reservation.ErrCodeExhausted
				}
			},
			wantStatusCode: http.StatusServiceUnavailable,
			wantErrorCode:  "code_generation_exhausted",
		},
		{
			name: "serialization_conflict",
			body: validBody,
			repoSetUp: func(f *fakeReservationsRepo) {
				f.createFn = func(context.Context, reservation.CreateReservationRequest) (reservation.Reservation, error) {
					return reservation.Reservation{}, reservation.ErrConflict
				}
			},
			wantStatusCode: http.StatusConflict,
			wantErrorCode:  "booking_conflict",
		},
		{
			name: "repo_error",
			body: validBody,
			repoSetUp: func(f *fakeReservationsRepo) {
				f.createFn = func(context.Context, reservation.CreateReservationRequest) (reservation.Reservation, error) {
					return reservation.Reservation{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeReservationsRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewReservationsHandler(repo, nil)
			r := setupAuthedRouter(http.MethodPost, "/reservations", clientClaims(userID), h.CreateReservation)

			w := doJSON(r, http.MethodPost, "/reservations", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantErrorCode != "" && errorCode(t, w) != tt.wantErrorCode {
				t.Fatalf("got error code %q, want %q", errorCode(t, w), tt.wantErrorCode)
			}
		})
	}
}

func TestCreateReservationRequiresAuth(t *testing.T) {
	h := handlers.NewReservationsHandler(&fakeReservationsRepo{}, nil)

	// nil claims make the fake verifier reject every token
	r := setupAuthedRouter(http.MethodPost, "/reservations", nil, h.CreateReservation)

	w := doJSON(r, http.MethodPost, "/reservations", `{"eventId": "`+newUUID()+`", "seats": 1}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
}

type fakeActiveChecker struct {
	isActiveFn func(ctx context.Context, id string) (bool, error)
}

func (f *fakeActiveChecker) IsActive(ctx context.Context, id string) (bool, error) {
	if f.isActiveFn != nil {
		return f.isActiveFn(ctx, id)
	}

	return true, nil
}

func TestCreateReservationRejectsInactiveAccount(t *testing.T) {
	userID := newUUID()

	repo := &fakeReservationsRepo{
		createFn: func(context.Context, reservation.CreateReservationRequest) (reservation.Reservation, error) {
			t.Fatal("create must not be reached for an inactive account")
			return reservation.Reservation{}, nil
		},
	}

	h := handlers.NewReservationsHandler(repo, &fakeActiveChecker{
		isActiveFn: func(context.Context, string) (bool, error) {
			return false, nil
		},
	})
	r := setupAuthedRouter(http.MethodPost, "/reservations", clientClaims(userID), h.CreateReservation)

	w := doJSON(r, http.MethodPost, "/reservations", `{"eventId": "`+newUUID()+`", "seats": 1}`)

	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403, body=%s", w.Code, w.Body.String())
	}
}

func TestConfirmReservationHandler(t *testing.T) {
	ownerID := newUUID()
	resID := newUUID()

	owned := reservation.Reservation{ID: resID, UserID: ownerID, Status: reservation.StatusPending}

	tests := []struct {
		name           string
		claims         *auth.Claims
		url            string
		repoSetUp      func(*fakeReservationsRepo)
		wantStatusCode int
		wantErrorCode  string
	}{
		{
			name:   "owner_confirms",
			claims: clientClaims(ownerID),
			url:    "/reservations/" + resID + "/confirm",
			repoSetUp: func(f *fakeReservationsRepo) {
				f.getFn = func(context.Context, string) (reservation.Reservation, error) { return owned, nil }
				f.confirmFn = func(context.Context, string) (reservation.Reservation, error) {
					confirmed := owned
					confirmed.Status = reservation.StatusConfirmed
					return confirmed, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:   "admin_confirms_for_someone_else",
			claims: &auth.Claims{UserID: newUUID(), Role: "admin", TokenType: "access"},
			url:    "/reservations/" + resID + "/confirm",
			repoSetUp: func(f *fakeReservationsRepo) {
				f.getFn = func(context.Context, string) (reservation.Reservation, error) { return owned, nil }
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:   "stranger_forbidden",
			claims: clientClaims(newUUID()),
			url:    "/reservations/" + resID + "/confirm",
			repoSetUp: func(f *fakeReservationsRepo) {
				f.getFn = func(context.Context, string) (reservation.Reservation, error) { return owned, nil }
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "invalid_id",
			claims:         clientClaims(ownerID),
			url:            "/reservations/not-a-uuid/confirm",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:   "not_found",
			claims: clientClaims(ownerID),
			url:    "/reservations/" + resID + "/confirm",
			repoSetUp: func(f *fakeReservationsRepo) {
				f.getFn = func(context.Context, string) (reservation.Reservation, error) {
					return reservation.Reservation{}, reservation.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:   "already_cancelled",
			claims: clientClaims(ownerID),
			url:    "/reservations/" + resID + "/confirm",
			repoSetUp: func(f *fakeReservationsRepo) {
				f.getFn = func(context.Context, string) (reservation.Reservation, error) { return owned, nil }
				f.confirmFn = func(context.Context, string) (reservation.Reservation, error) {
					return reservation.Reservation{}, reservation.ErrInvalidTransition
				}
			},
			wantStatusCode: http.StatusConflict,
			wantErrorCode:  "invalid_transition",
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeReservationsRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewReservationsHandler(repo, nil)
			r := setupAuthedRouter(http.MethodPost, "/reservations/:id/confirm", tt.claims, h.ConfirmReservation)

			w := doJSON(r, http.MethodPost, tt.url, "")

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantErrorCode != "" && errorCode(t, w) != tt.wantErrorCode {
				t.Fatalf("got error code %q, want %q", errorCode(t, w), tt.wantErrorCode)
			}
		})
	}
}

func TestCancelReservationHandler(t *testing.T) {
	ownerID := newUUID()
	resID := newUUID()

	owned := reservation.Reservation{ID: resID, UserID: ownerID, Status: reservation.StatusConfirmed}

	t.Run("owner_cancels_with_reason", func(t *testing.T) {
		var gotReason string

		repo := &fakeReservationsRepo{
			getFn: func(context.Context, string) (reservation.Reservation, error) { return owned, nil },
			cancelFn: func(_ context.Context, _ string, reason string) (reservation.Reservation, error) {
				gotReason = reason
				cancelled := owned
				cancelled.Status = reservation.StatusCancelled
				return cancelled, nil
			},
		}

		h := handlers.NewReservationsHandler(repo, nil)
		r := setupAuthedRouter(http.MethodPost, "/reservations/:id/cancel", clientClaims(ownerID), h.CancelReservation)

		w := doJSON(r, http.MethodPost, "/reservations/"+resID+"/cancel", `{"reason": "plans changed"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
		}

		if gotReason != "plans changed" {
			t.Fatalf("reason = %q, want %q", gotReason, "plans changed")
		}
	})

	t.Run("empty_body_is_fine", func(t *testing.T) {
		repo := &fakeReservationsRepo{
			getFn: func(context.Context, string) (reservation.Reservation, error) { return owned, nil },
		}

		h := handlers.NewReservationsHandler(repo, nil)
		r := setupAuthedRouter(http.MethodPost, "/reservations/:id/cancel", clientClaims(ownerID), h.CancelReservation)

		w := doJSON(r, http.MethodPost, "/reservations/"+resID+"/cancel", "")

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("stranger_forbidden", func(t *testing.T) {
		repo := &fakeReservationsRepo{
			getFn: func(context.Context, string) (reservation.Reservation, error) { return owned, nil },
		}

		h := handlers.NewReservationsHandler(repo, nil)
		r := setupAuthedRouter(http.MethodPost, "/reservations/:id/cancel", clientClaims(newUUID()), h.CancelReservation)

		w := doJSON(r, http.MethodPost, "/reservations/"+resID+"/cancel", "")

		if w.Code != http.StatusForbidden {
			t.Fatalf("got status %d, want 403, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("cancelling_twice_conflicts", func(t *testing.T) {
		repo := &fakeReservationsRepo{
			getFn: func(context.Context, string) (reservation.Reservation, error) { return owned, nil },
			cancelFn: func(context.Context, string, string) (reservation.Reservation, error) {
				return reservation.Reservation{}, reservation.ErrInvalidTransition
			},
		}

		h := handlers.NewReservationsHandler(repo, nil)
		r := setupAuthedRouter(http.MethodPost, "/reservations/:id/cancel", clientClaims(ownerID), h.CancelReservation)

		w := doJSON(r, http.MethodPost, "/reservations/"+resID+"/cancel", "")

		if w.Code != http.StatusConflict {
			t.Fatalf("got status %d, want 409, body=%s", w.Code, w.Body.String())
		}

		if errorCode(t, w) != "invalid_transition" {
			t.Fatalf("got error code %q, want invalid_transition", errorCode(t, w))
		}
	})
}

func TestListUserReservationsHandler(t *testing.T) {
	ownerID := newUUID()

	tests := []struct {
		name           string
		claims         *auth.Claims
		url            string
		repoSetUp      func(*fakeReservationsRepo)
		wantStatusCode int
	}{
		{
			name:   "owner_lists_upcoming",
			claims: clientClaims(ownerID),
			url:    "/users/" + ownerID + "/reservations?scope=upcoming",
			repoSetUp: func(f *fakeReservationsRepo) {
				f.listForUserFn = func(_ context.Context, userID, scope string) ([]reservation.Reservation, error) {
					if scope != "upcoming" {
						return nil, errors.New("scope not forwarded")
					}
					return []reservation.Reservation{{ID: newUUID(), UserID: userID}}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "bad_scope",
			claims:         clientClaims(ownerID),
			url:            "/users/" + ownerID + "/reservations?scope=sometime",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "stranger_forbidden",
			claims:         clientClaims(newUUID()),
			url:            "/users/" + ownerID + "/reservations",
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "admin_can_list_anyone",
			claims:         &auth.Claims{UserID: newUUID(), Role: "admin", TokenType: "access"},
			url:            "/users/" + ownerID + "/reservations",
			wantStatusCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeReservationsRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewReservationsHandler(repo, nil)
			r := setupAuthedRouter(http.MethodGet, "/users/:id/reservations", tt.claims, h.ListUserReservations)

			w := doJSON(r, http.MethodGet, tt.url, "")

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestListEventReservationsHandler(t *testing.T) {
	eventID := newUUID()
	now := time.Now().UTC()

	validCursor, err := utils.EncodeReservationCursor(now.Add(-time.Minute), newUUID())
	if err != nil {
		t.Fatalf("failed to build cursor: %v", err)
	}

	t.Run("first_page", func(t *testing.T) {
		repo := &fakeReservationsRepo{
			listByEventFn: func(_ context.Context, gotEventID string, limit int, afterCreatedAt time.Time, afterID string) ([]reservation.Reservation, *string, bool, error) {
				if gotEventID != eventID {
					return nil, nil, false, errors.New("event id not forwarded")
				}
				if !afterCreatedAt.IsZero() || afterID != "" {
					return nil, nil, false, errors.New("first page must not carry a cursor")
				}

				next := "next-cursor"
				return []reservation.Reservation{{ID: newUUID(), EventID: eventID}}, &next, true, nil
			},
		}

		h := handlers.NewReservationsHandler(repo, nil)
		r := setupAuthedRouter(http.MethodGet, "/events/:id/reservations", clientClaims(newUUID()), h.ListEventReservations)

		w := doJSON(r, http.MethodGet, "/events/"+eventID+"/reservations?limit=10", "")

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
		}

		var resp struct {
			HasMore    bool   `json:"hasMore"`
			NextCursor string `json:"nextCursor"`
		}

		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("could not decode response: %v", err)
		}

		if !resp.HasMore || resp.NextCursor != "next-cursor" {
			t.Fatalf("pagination fields wrong: %+v", resp)
		}
	})

	t.Run("with_cursor", func(t *testing.T) {
		repo := &fakeReservationsRepo{
			listByEventFn: func(_ context.Context, _ string, _ int, afterCreatedAt time.Time, afterID string) ([]reservation.Reservation, *string, bool, error) {
				if afterCreatedAt.IsZero() || afterID == "" {
					return nil, nil, false, errors.New("cursor not decoded")
				}
				return nil, nil, false, nil
			},
		}

		h := handlers.NewReservationsHandler(repo, nil)
		r := setupAuthedRouter(http.MethodGet, "/events/:id/reservations", clientClaims(newUUID()), h.ListEventReservations)

		w := doJSON(r, http.MethodGet, "/events/"+eventID+"/reservations?cursor="+validCursor, "")

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("garbage_cursor", func(t *testing.T) {
		h := handlers.NewReservationsHandler(&fakeReservationsRepo{}, nil)
		r := setupAuthedRouter(http.MethodGet, "/events/:id/reservations", clientClaims(newUUID()), h.ListEventReservations)

		w := doJSON(r, http.MethodGet, "/events/"+eventID+"/reservations?cursor=%21%21not-base64", "")

		if w.Code != http.StatusBadRequest {
			t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
		}
	})
}
