package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/medcart-backend/internal/reviews"
	"github.com/angelmondragon/medcart-backend/internal/subscriptions"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

type stubReviewsService struct {
	reviews.Service
	upsertFn  func(userID, productID uuid.UUID, in reviews.UpsertInput) (*reviews.ReviewDTO, error)
	summaryFn func(productID uuid.UUID) (*reviews.Summary, error)
	voteFn    func(userID, reviewID uuid.UUID, helpful bool) (*reviews.ReviewDTO, error)
}

func (s stubReviewsService) Upsert(_ context.Context, userID, productID uuid.UUID, in reviews.UpsertInput) (*reviews.ReviewDTO, error) {
	return s.upsertFn(userID, productID, in)
}

func (s stubReviewsService) Summary(_ context.Context, productID uuid.UUID) (*reviews.Summary, error) {
	return s.summaryFn(productID)
}

func (s stubReviewsService) Vote(_ context.Context, userID, reviewID uuid.UUID, helpful bool) (*reviews.ReviewDTO, error) {
	return s.voteFn(userID, reviewID, helpful)
}

func TestReviewUpsertValidatesRating(t *testing.T) {
	svc := stubReviewsService{upsertFn: func(uuid.UUID, uuid.UUID, reviews.UpsertInput) (*reviews.ReviewDTO, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	productID := uuid.New()
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", `{"rating":6,"title":"great"}`, uuid.New(), map[string]string{"productId": productID.String()})
	ReviewUpsert(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewUpsertPassesInput(t *testing.T) {
	userID, productID := uuid.New(), uuid.New()
	svc := stubReviewsService{upsertFn: func(u, p uuid.UUID, in reviews.UpsertInput) (*reviews.ReviewDTO, error) {
		assert.Equal(t, userID, u)
		assert.Equal(t, productID, p)
		assert.Equal(t, 4, in.Rating)
		return &reviews.ReviewDTO{ID: uuid.New(), Rating: in.Rating}, nil
	}}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", `{"rating":4,"title":"works","comment":"helped my sleep"}`, userID, map[string]string{"productId": productID.String()})
	ReviewUpsert(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReviewSummaryWithoutReviews(t *testing.T) {
	productID := uuid.New()
	svc := stubReviewsService{summaryFn: func(p uuid.UUID) (*reviews.Summary, error) {
		return &reviews.Summary{ProductID: p, Distribution: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}, nil
	}}
	rec := httptest.NewRecorder()
	ReviewSummary(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/", "", uuid.Nil, map[string]string{"productId": productID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary reviews.Summary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summary))
	assert.Equal(t, 0.0, summary.AverageRating)
	assert.Equal(t, int64(0), summary.TotalReviews)
}

func TestReviewVoteRequiresHelpfulFlag(t *testing.T) {
	svc := stubReviewsService{voteFn: func(uuid.UUID, uuid.UUID, bool) (*reviews.ReviewDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot vote on your own review")
	}}
	reviewID := uuid.New().String()

	rec := httptest.NewRecorder()
	ReviewVote(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{}`, uuid.New(), map[string]string{"reviewId": reviewID}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	ReviewVote(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{"helpful":false}`, uuid.New(), map[string]string{"reviewId": reviewID}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "cannot vote on your own review", env.Error.Message)
}

type stubSubscriptionsService struct {
	subscriptions.Service
	cancelFn func(userID, subID uuid.UUID) (*subscriptions.SubscriptionDTO, error)
}

func (s stubSubscriptionsService) Cancel(_ context.Context, userID, subID uuid.UUID) (*subscriptions.SubscriptionDTO, error) {
	return s.cancelFn(userID, subID)
}

func TestSubscriptionCancelRejectsBadID(t *testing.T) {
	svc := stubSubscriptionsService{cancelFn: func(uuid.UUID, uuid.UUID) (*subscriptions.SubscriptionDTO, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	rec := httptest.NewRecorder()
	SubscriptionCancel(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", "", uuid.New(), map[string]string{"subscriptionId": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionCancelNotFound(t *testing.T) {
	svc := stubSubscriptionsService{cancelFn: func(uuid.UUID, uuid.UUID) (*subscriptions.SubscriptionDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}}
	rec := httptest.NewRecorder()
	SubscriptionCancel(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", "", uuid.New(), map[string]string{"subscriptionId": uuid.NewString()}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
