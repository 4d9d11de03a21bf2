package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payflow-backend/api/middleware"
	"github.com/angelmondragon/payflow-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

type stubInbox struct {
	listFn        func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	markReadFn    func(ctx context.Context, recipientID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

func (s *stubInbox) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &notifications.ListResult{}, nil
}

func (s *stubInbox) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, recipientID, notificationID)
	}
	return nil
}

func (s *stubInbox) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, recipientID)
	}
	return 0, nil
}

func decodeData[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestListNotificationsPassesQuery(t *testing.T) {
	userID := uuid.New()
	svc := &stubInbox{listFn: func(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
		assert.Equal(t, notifications.ListParams{RecipientID: userID, Limit: 10, Cursor: "abc", UnreadOnly: true}, params)
		return &notifications.ListResult{Cursor: "next", Unread: 4}, nil
	}}

	resp := httptest.NewRecorder()
	ListNotifications(svc, logger.Nop())(resp, callerRequest(http.MethodGet, "/api/v1/notifications?limit=10&unreadOnly=true&cursor=abc", "", userID))

	require.Equal(t, http.StatusOK, resp.Code)
	data := decodeData[notifications.ListResult](t, resp)
	assert.Equal(t, "next", data.Cursor)
	assert.Equal(t, int64(4), data.Unread)
}

func TestListNotificationsRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"limit=1000", "limit=x", "unreadOnly=maybe"} {
		resp := httptest.NewRecorder()
		ListNotifications(&stubInbox{}, logger.Nop())(resp, callerRequest(http.MethodGet, "/api/v1/notifications?"+query, "", uuid.New()))
		assert.Equal(t, http.StatusBadRequest, resp.Code, query)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	userID, notificationID := uuid.New(), uuid.New()
	svc := &stubInbox{markReadFn: func(_ context.Context, uid, nid uuid.UUID) error {
		if uid != userID || nid != notificationID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return nil
	}}
	handler := MarkNotificationRead(svc, logger.Nop())

	resp := httptest.NewRecorder()
	handler(resp, addRouteParam(callerRequest(http.MethodPost, "/", "", userID), "notificationId", notificationID.String()))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decodeData[map[string]bool](t, resp)["read"])

	resp = httptest.NewRecorder()
	handler(resp, addRouteParam(callerRequest(http.MethodPost, "/", "", uuid.New()), "notificationId", notificationID.String()))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMarkNotificationReadRejectsBadInput(t *testing.T) {
	handler := MarkNotificationRead(&stubInbox{}, logger.Nop())
	cases := map[string]struct {
		req  *http.Request
		want int
	}{
		"no caller": {
			req:  addRouteParam(httptest.NewRequest(http.MethodPost, "/", nil), "notificationId", uuid.NewString()),
			want: http.StatusUnauthorized,
		},
		"malformed caller": {
			req: addRouteParam(httptest.NewRequest(http.MethodPost, "/", nil).WithContext(
				middleware.WithUserID(context.Background(), "bad")), "notificationId", uuid.NewString()),
			want: http.StatusUnauthorized,
		},
		"malformed id": {
			req:  addRouteParam(callerRequest(http.MethodPost, "/", "", uuid.New()), "notificationId", "invalid"),
			want: http.StatusBadRequest,
		},
	}
	for name, tc := range cases {
		resp := httptest.NewRecorder()
		handler(resp, tc.req)
		assert.Equal(t, tc.want, resp.Code, name)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	userID := uuid.New()
	svc := &stubInbox{markAllReadFn: func(_ context.Context, uid uuid.UUID) (int64, error) {
		assert.Equal(t, userID, uid)
		return 5, nil
	}}

	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, logger.Nop())(resp, callerRequest(http.MethodPost, "/api/v1/notifications/read-all", "", userID))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(5), decodeData[map[string]int64](t, resp)["updated"])
}

func TestNotificationHandlersWithoutService(t *testing.T) {
	req := callerRequest(http.MethodGet, "/", "", uuid.New())
	for _, handler := range []http.HandlerFunc{
		ListNotifications(nil, logger.Nop()),
		MarkAllNotificationsRead(nil, logger.Nop()),
	} {
		resp := httptest.NewRecorder()
		handler(resp, req)
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	}
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
