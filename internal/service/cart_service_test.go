package service

import (
	"context"
	"testing"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProducts() *mockProductRepo {
	return newMockProductRepo(
		&domain.Product{ID: 1, Name: "Noir Intense", Price: decimal.RequireFromString("89.90"), Active: true},
		&domain.Product{ID: 2, Name: "Fleur Blanche", Price: decimal.RequireFromString("54.50"), Active: true},
		&domain.Product{ID: 3, Name: "Ambre Nuit", Price: decimal.RequireFromString("120.00"), Active: true},
	)
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	products := testProducts()
	svc := NewCartService(products, newMockCartRepo(products), newFakeSessionStore())

	err := svc.Add(context.Background(), UserIdentity(7), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	err = svc.Add(context.Background(), AnonymousIdentity("tok"), 1, -3)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAuthenticatedAddIncrementsExistingLine(t *testing.T) {
	products := testProducts()
	carts := newMockCartRepo(products)
	svc := NewCartService(products, carts, newFakeSessionStore())
	ctx := context.Background()
	id := UserIdentity(7)

	require.NoError(t, svc.Add(ctx, id, 1, 2))
	require.NoError(t, svc.Add(ctx, id, 1, 3))

	view, err := svc.GetCart(ctx, id)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("449.50")), "total was %s", view.Total)
}

func TestSetQuantityOverwritesAndBelowOneRemoves(t *testing.T) {
	products := testProducts()
	carts := newMockCartRepo(products)
	svc := NewCartService(products, carts, newFakeSessionStore())
	ctx := context.Background()
	id := UserIdentity(7)

	require.NoError(t, svc.Add(ctx, id, 1, 4))
	require.NoError(t, svc.SetQuantity(ctx, id, 1, 2))

	view, err := svc.GetCart(ctx, id)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)

	require.NoError(t, svc.SetQuantity(ctx, id, 1, 0))
	view, err = svc.GetCart(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestRemoveIsIdempotent(t *testing.T) {
	products := testProducts()
	svc := NewCartService(products, newMockCartRepo(products), newFakeSessionStore())
	ctx := context.Background()

	assert.NoError(t, svc.Remove(ctx, UserIdentity(7), 99))
	assert.NoError(t, svc.Remove(ctx, AnonymousIdentity("tok"), 99))
}

func TestAnonymousCartRoundTrip(t *testing.T) {
	products := testProducts()
	sessions := newFakeSessionStore()
	svc := NewCartService(products, newMockCartRepo(products), sessions)
	ctx := context.Background()
	id := AnonymousIdentity("tok")

	require.NoError(t, svc.Add(ctx, id, 1, 1))
	require.NoError(t, svc.Add(ctx, id, 1, 2))
	require.NoError(t, svc.Add(ctx, id, 2, 1))
	require.NoError(t, svc.SetQuantity(ctx, id, 2, 5))
	require.NoError(t, svc.Remove(ctx, id, 3))

	view, err := svc.GetCart(ctx, id)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, int64(1), view.Items[0].ProductID)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, int64(2), view.Items[1].ProductID)
	assert.Equal(t, 5, view.Items[1].Quantity)
	// 3 * 89.90 + 5 * 54.50
	assert.True(t, view.Total.Equal(decimal.RequireFromString("542.20")), "total was %s", view.Total)
}

func TestAnonymousAddUnknownProduct(t *testing.T) {
	products := testProducts()
	svc := NewCartService(products, newMockCartRepo(products), newFakeSessionStore())

	err := svc.Add(context.Background(), AnonymousIdentity("tok"), 999, 1)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestGetCartSkipsVanishedProducts(t *testing.T) {
	products := testProducts()
	sessions := newFakeSessionStore()
	svc := NewCartService(products, newMockCartRepo(products), sessions)
	ctx := context.Background()
	id := AnonymousIdentity("tok")

	require.NoError(t, svc.Add(ctx, id, 1, 2))
	require.NoError(t, svc.Add(ctx, id, 2, 1))
	delete(products.products, 2)

	view, err := svc.GetCart(ctx, id)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(1), view.Items[0].ProductID)
}

func TestMergeOnLoginCombinesQuantities(t *testing.T) {
	products := testProducts()
	carts := newMockCartRepo(products)
	sessions := newFakeSessionStore()
	svc := NewCartService(products, carts, sessions)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, UserIdentity(7), 1, 2))

	anon := AnonymousIdentity("tok")
	require.NoError(t, svc.Add(ctx, anon, 1, 3))
	require.NoError(t, svc.Add(ctx, anon, 2, 1))

	require.NoError(t, svc.MergeOnLogin(ctx, "tok", 7))

	view, err := svc.GetCart(ctx, UserIdentity(7))
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, 1, view.Items[1].Quantity)

	// Session cart is gone after the merge.
	_, ok := sessions.carts["tok"]
	assert.False(t, ok)
}

func TestMergeOnLoginSkipsUnknownProducts(t *testing.T) {
	products := testProducts()
	carts := newMockCartRepo(products)
	sessions := newFakeSessionStore()
	svc := NewCartService(products, carts, sessions)
	ctx := context.Background()

	sessions.carts["tok"] = domain.SessionCart{1: 1, 999: 4}

	require.NoError(t, svc.MergeOnLogin(ctx, "tok", 7))

	view, err := svc.GetCart(ctx, UserIdentity(7))
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(1), view.Items[0].ProductID)
}

func TestMergeOnLoginWithoutSessionIsNoOp(t *testing.T) {
	products := testProducts()
	svc := NewCartService(products, newMockCartRepo(products), newFakeSessionStore())
	ctx := context.Background()

	assert.NoError(t, svc.MergeOnLogin(ctx, "", 7))
	assert.NoError(t, svc.MergeOnLogin(ctx, "never-seen", 7))
}

func TestMergeOnLoginKeepsSessionWhenMergeFails(t *testing.T) {
	products := testProducts()
	carts := newMockCartRepo(products)
	carts.failMerge = assert.AnError
	sessions := newFakeSessionStore()
	svc := NewCartService(products, carts, sessions)
	ctx := context.Background()

	sessions.carts["tok"] = domain.SessionCart{1: 1}

	err := svc.MergeOnLogin(ctx, "tok", 7)
	assert.Error(t, err)

	// The session cart survives so a retry can still merge it.
	_, ok := sessions.carts["tok"]
	assert.True(t, ok)
}
