package catalog

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

func sampleProduct() domain.Product {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return domain.Product{
		ID:          "p1",
		Name:        "Veste lin",
		Price:       25000,
		Description: "Veste légère",
		Image:       "https://cdn.example.com/p1.jpg",
		Category:    "vestes",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func newTestEditor(t *testing.T) (*Editor, *MockStore, *MockUploader, *Collection) {
	t.Helper()
	st := new(MockStore)
	up := new(MockUploader)
	products := NewCollection()
	products.Reset([]domain.Product{sampleProduct(), {ID: "p2", Name: "Robe", Price: 9000}})
	e := NewEditor(st, up, products)
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e, st, up, products
}

func TestEditBuffer_Update(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		value   any
		wantErr bool
		check   func(t *testing.T, b *EditBuffer)
	}{
		{"price from string", FieldPrice, "12.5", false, func(t *testing.T, b *EditBuffer) { assert.Equal(t, 12.5, b.Price) }},
		{"price from number", FieldPrice, 300, false, func(t *testing.T, b *EditBuffer) { assert.Equal(t, 300.0, b.Price) }},
		{"price negative", FieldPrice, -1, true, nil},
		{"price garbage", FieldPrice, "abc", true, nil},
		{"price empty", FieldPrice, "", true, nil},
		{"price NaN", FieldPrice, math.NaN(), true, nil},
		{"price infinite", FieldPrice, math.Inf(1), true, nil},
		{"price bool", FieldPrice, true, true, nil},
		{"rating in range", FieldRating, "4.5", false, func(t *testing.T, b *EditBuffer) { assert.Equal(t, 4.5, *b.Rating) }},
		{"rating too high", FieldRating, 5.5, true, nil},
		{"rating too low", FieldRating, 0.5, true, nil},
		{"rating bool", FieldRating, true, true, nil},
		{"rating cleared", FieldRating, "", false, func(t *testing.T, b *EditBuffer) { assert.Nil(t, b.Rating) }},
		{"review count string", FieldReviewCount, "010", false, func(t *testing.T, b *EditBuffer) { assert.Equal(t, 10, *b.ReviewCount) }},
		{"review count float whole", FieldReviewCount, 12.0, false, func(t *testing.T, b *EditBuffer) { assert.Equal(t, 12, *b.ReviewCount) }},
		{"review count fractional", FieldReviewCount, 1.5, true, nil},
		{"review count negative", FieldReviewCount, "-3", true, nil},
		{"review count hex", FieldReviewCount, "0x1F", true, nil},
		{"review count bool", FieldReviewCount, true, true, nil},
		{"review count cleared", FieldReviewCount, nil, false, func(t *testing.T, b *EditBuffer) { assert.Nil(t, b.ReviewCount) }},
		{"name trimmed", FieldName, "  Veste  ", false, func(t *testing.T, b *EditBuffer) { assert.Equal(t, "Veste", b.Name) }},
		{"name blank", FieldName, "   ", true, nil},
		{"featured from string", FieldIsFeatured, "true", false, func(t *testing.T, b *EditBuffer) { assert.True(t, b.IsFeatured) }},
		{"featured garbage", FieldIsFeatured, "maybe", true, nil},
		{"category uncategorized clears", FieldCategory, "uncategorized", false, func(t *testing.T, b *EditBuffer) { assert.Empty(t, b.Category) }},
		{"category all rejected", FieldCategory, "all", true, nil},
		{"unknown field", Field("sku"), "x", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BeginEdit(sampleProduct())
			before := b.clone()
			err := b.Update(tt.field, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				assert.Equal(t, before, b, "buffer must be unchanged on failure")
				return
			}
			require.NoError(t, err)
			tt.check(t, b)
		})
	}
}

func TestEditBuffer_DoesNotAliasProduct(t *testing.T) {
	p := sampleProduct()
	p.Rating, p.ReviewCount = PtrTo(4.0), PtrTo(2)
	b := BeginEdit(p)
	require.NoError(t, b.Update(FieldRating, 5))
	assert.Equal(t, 4.0, *p.Rating)
}

func TestEditor_CommitUnchangedIsIdempotent(t *testing.T) {
	e, st, _, products := newTestEditor(t)
	original := sampleProduct()
	st.On("UpdateProduct", mock.Anything, mock.AnythingOfType("*domain.Product")).
		Return(echo, nil).Once()

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	updated, err := e.Commit(context.Background(), "req-1")
	require.NoError(t, err)

	assert.NotEqual(t, original.UpdatedAt, updated.UpdatedAt)
	updated.UpdatedAt = original.UpdatedAt
	assert.Equal(t, original, updated)

	inCollection, ok := products.Get("p1")
	require.True(t, ok)
	assert.Equal(t, e.now(), inCollection.UpdatedAt)
	assert.Equal(t, SessionIdle, e.State())
	st.AssertExpectations(t)
}

func TestEditor_CommitReplaysSameRequestID(t *testing.T) {
	e, st, _, _ := newTestEditor(t)
	st.On("UpdateProduct", mock.Anything, mock.Anything).
		Return(echo, nil).Once()

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	_, err = e.Update(FieldName, "Veste en lin")
	require.NoError(t, err)

	first, err := e.Commit(context.Background(), "req-42")
	require.NoError(t, err)
	second, err := e.Commit(context.Background(), "req-42")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	st.AssertNumberOfCalls(t, "UpdateProduct", 1)
}

func TestEditor_BeginWhileBusy(t *testing.T) {
	e, _, _, _ := newTestEditor(t)

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	_, err = e.Update(FieldPrice, 100)
	require.NoError(t, err)

	again, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, again.Price, "re-opening the same product keeps the buffer")

	_, err = e.Begin(context.Background(), "p2")
	assert.True(t, errors.Is(err, ErrSessionBusy))

	require.NoError(t, e.Cancel())
	_, err = e.Begin(context.Background(), "p2")
	assert.NoError(t, err)
}

func TestEditor_BeginLoadsFromStoreWhenNotInCollection(t *testing.T) {
	e, st, _, _ := newTestEditor(t)
	st.On("GetProductByID", mock.Anything, "p9").Return(&domain.Product{ID: "p9", Name: "Costume"}, nil).Once()
	st.On("GetProductByID", mock.Anything, "missing").Return(nil, store.ErrProductNotFound).Once()

	_, err := e.Begin(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, SessionIdle, e.State())

	buf, err := e.Begin(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, "Costume", buf.Name)
}

func TestEditor_NoSession(t *testing.T) {
	e, _, _, _ := newTestEditor(t)

	_, err := e.Update(FieldName, "x")
	assert.True(t, errors.Is(err, ErrNoSession))
	_, err = e.Commit(context.Background(), "r")
	assert.True(t, errors.Is(err, ErrNoSession))
	assert.True(t, errors.Is(e.Cancel(), ErrNoSession))
}

func TestEditor_CancelHasNoSideEffects(t *testing.T) {
	e, st, up, products := newTestEditor(t)
	before := products.Snapshot()

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	_, err = e.Update(FieldName, "Autre")
	require.NoError(t, err)
	require.NoError(t, e.Cancel())

	assert.Equal(t, before, products.Snapshot())
	buf, state := e.Current()
	assert.Nil(t, buf)
	assert.Equal(t, SessionIdle, state)
	st.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything)
	up.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditor_GatewayFailureKeepsBuffer(t *testing.T) {
	e, st, _, products := newTestEditor(t)
	before := products.Snapshot()
	st.On("UpdateProduct", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	_, err = e.Update(FieldPrice, "30000")
	require.NoError(t, err)

	_, err = e.Commit(context.Background(), "req-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayFailure))

	buf, state := e.Current()
	assert.Equal(t, SessionEditing, state)
	require.NotNil(t, buf)
	assert.Equal(t, 30000.0, buf.Price)
	assert.Equal(t, before, products.Snapshot())
}

func TestEditor_UploadFailureSkipsStoreWrite(t *testing.T) {
	e, st, up, _ := newTestEditor(t)
	up.On("Upload", mock.Anything, []byte("img"), "image/png").Return("", errors.New("s3 down")).Once()

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	_, err = e.StageImage(PendingImage{Data: []byte("img"), ContentType: "image/png"}, nil)
	require.NoError(t, err)

	_, err = e.Commit(context.Background(), "req-1")
	assert.True(t, errors.Is(err, ErrUploadFailure))
	st.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything)

	buf, state := e.Current()
	assert.Equal(t, SessionEditing, state)
	assert.True(t, buf.HasPendingImage())
}

func TestEditor_EmptyUploadURLIsFailure(t *testing.T) {
	e, st, up, _ := newTestEditor(t)
	up.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return("", nil).Once()

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	_, err = e.StageImage(PendingImage{Data: []byte("img")}, nil)
	require.NoError(t, err)

	_, err = e.Commit(context.Background(), "")
	assert.True(t, errors.Is(err, ErrUploadFailure))
	st.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything)
}

func TestEditor_CommitUsesUploadedURL(t *testing.T) {
	e, st, up, _ := newTestEditor(t)
	up.On("Upload", mock.Anything, []byte("img"), "image/webp").Return("https://cdn.example.com/new.webp", nil).Once()
	st.On("UpdateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Image == "https://cdn.example.com/new.webp"
	})).Return(echo, nil).Once()

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	_, err = e.StageImage(PendingImage{Data: []byte("img"), ContentType: "image/webp"}, nil)
	require.NoError(t, err)

	updated, err := e.Commit(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/new.webp", updated.Image)
	st.AssertExpectations(t)
	up.AssertExpectations(t)
}

func TestEditor_RejectsHalfRatingPair(t *testing.T) {
	e, st, _, _ := newTestEditor(t)

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)
	_, err = e.Update(FieldRating, 4)
	require.NoError(t, err)

	_, err = e.Commit(context.Background(), "req-1")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, SessionEditing, e.State())
	st.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything)
}

func TestEditor_SecondCommitWhileInFlight(t *testing.T) {
	e, st, _, _ := newTestEditor(t)
	release := make(chan struct{})
	st.On("UpdateProduct", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(echo, nil).Once()

	_, err := e.Begin(context.Background(), "p1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.Commit(context.Background(), "req-1")
		done <- err
	}()
	require.Eventually(t, func() bool { return e.State() == SessionCommitting }, time.Second, time.Millisecond)

	_, err = e.Commit(context.Background(), "req-2")
	assert.True(t, errors.Is(err, ErrCommitInProgress))
	_, err = e.Update(FieldName, "x")
	assert.True(t, errors.Is(err, ErrCommitInProgress))

	close(release)
	require.NoError(t, <-done)
	st.AssertNumberOfCalls(t, "UpdateProduct", 1)
}
