package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
)

type stubPurchases map[uuid.UUID]bool

func (s stubPurchases) HasDeliveredPurchase(_ context.Context, userID, _ uuid.UUID) (bool, error) {
	return s[userID], nil
}

func newTestService(t *testing.T, purchases stubPurchases) (Service, *gorm.DB) {
	t.Helper()
	client := dbtest.Client(t)
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(client.DB()),
		Tx:        client,
		Purchases: purchases,
		Now:       func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc, client.DB()
}

func seedUser(t *testing.T, conn *gorm.DB, name string) uuid.UUID {
	t.Helper()
	u := &models.User{Name: name, Email: uuid.NewString() + "@example.com", PasswordHash: "x", Role: enums.UserRoleCustomer}
	require.NoError(t, conn.Create(u).Error)
	return u.ID
}

func seedProduct(t *testing.T, conn *gorm.DB) uuid.UUID {
	t.Helper()
	p := &models.Product{
		Name:              "Ashwagandha",
		Brand:             "Himalaya",
		ProductType:       enums.ProductTypeSupplement,
		Price:             decimal.RequireFromString("240.00"),
		StockQuantity:     20,
		LowStockThreshold: 5,
		IsActive:          true,
	}
	require.NoError(t, conn.Create(p).Error)
	return p.ID
}

func TestSummaryWithNoReviewsIsZero(t *testing.T) {
	svc, conn := newTestService(t, stubPurchases{})
	productID := seedProduct(t, conn)

	summary, err := svc.Summary(context.Background(), productID)
	require.NoError(t, err)
	require.Zero(t, summary.AverageRating)
	require.Zero(t, summary.TotalReviews)
	require.Len(t, summary.Distribution, 5)
}

func TestUpsertEditsInsteadOfDuplicating(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t, stubPurchases{})
	productID := seedProduct(t, conn)
	userID := seedUser(t, conn, "Ravi")

	first, err := svc.Upsert(ctx, userID, productID, UpsertInput{Rating: 2, Title: "meh"})
	require.NoError(t, err)
	second, err := svc.Upsert(ctx, userID, productID, UpsertInput{Rating: 5, Title: "grew on me"})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 5, second.Rating)
	require.Equal(t, "Ravi", second.UserName)

	var count int64
	require.NoError(t, conn.Model(&models.Review{}).Where("product_id = ?", productID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	summary, err := svc.Summary(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, 5.0, summary.AverageRating)
}

func TestUpsertValidatesRatingAndProduct(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t, stubPurchases{})
	productID := seedProduct(t, conn)
	userID := seedUser(t, conn, "Ravi")

	_, err := svc.Upsert(ctx, userID, productID, UpsertInput{Rating: 6})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Upsert(ctx, userID, uuid.New(), UpsertInput{Rating: 4})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestVerifiedPurchaseAndAverage(t *testing.T) {
	ctx := context.Background()
	purchases := stubPurchases{}
	svc, conn := newTestService(t, purchases)
	productID := seedProduct(t, conn)
	buyer := seedUser(t, conn, "Meera")
	browser := seedUser(t, conn, "Kabir")
	third := seedUser(t, conn, "Zoya")
	purchases[buyer] = true

	mine, err := svc.Upsert(ctx, buyer, productID, UpsertInput{Rating: 5})
	require.NoError(t, err)
	require.True(t, mine.IsVerifiedPurchase)

	theirs, err := svc.Upsert(ctx, browser, productID, UpsertInput{Rating: 4})
	require.NoError(t, err)
	require.False(t, theirs.IsVerifiedPurchase)

	_, err = svc.Upsert(ctx, third, productID, UpsertInput{Rating: 4})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, 4.33, summary.AverageRating)
	require.EqualValues(t, 3, summary.TotalReviews)
	require.EqualValues(t, 2, summary.Distribution[4])

	// hidden reviews drop out of the aggregate and the public list
	_, err = svc.Moderate(ctx, theirs.ID, false)
	require.NoError(t, err)
	summary, err = svc.Summary(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, 4.5, summary.AverageRating)

	list, err := svc.List(ctx, productID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Reviews, 2)
}

func TestVotesMaintainHelpfulCount(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t, stubPurchases{})
	productID := seedProduct(t, conn)
	author := seedUser(t, conn, "Meera")
	voterA := seedUser(t, conn, "Kabir")
	voterB := seedUser(t, conn, "Zoya")

	review, err := svc.Upsert(ctx, author, productID, UpsertInput{Rating: 4})
	require.NoError(t, err)

	_, err = svc.Vote(ctx, author, review.ID, true)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	updated, err := svc.Vote(ctx, voterA, review.ID, true)
	require.NoError(t, err)
	require.Equal(t, 1, updated.HelpfulCount)

	updated, err = svc.Vote(ctx, voterB, review.ID, true)
	require.NoError(t, err)
	require.Equal(t, 2, updated.HelpfulCount)

	updated, err = svc.Vote(ctx, voterA, review.ID, false)
	require.NoError(t, err)
	require.Equal(t, 1, updated.HelpfulCount)

	updated, err = svc.Unvote(ctx, voterB, review.ID)
	require.NoError(t, err)
	require.Zero(t, updated.HelpfulCount)

	_, err = svc.Unvote(ctx, voterB, review.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteOnlyOwnReview(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t, stubPurchases{})
	productID := seedProduct(t, conn)
	author := seedUser(t, conn, "Meera")
	other := seedUser(t, conn, "Kabir")

	review, err := svc.Upsert(ctx, author, productID, UpsertInput{Rating: 3})
	require.NoError(t, err)

	err = svc.Delete(ctx, other, review.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.Delete(ctx, author, review.ID))
	mine, err := svc.ListMine(ctx, author)
	require.NoError(t, err)
	require.Empty(t, mine)
}
