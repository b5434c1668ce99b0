package catalog

import (
	"context"
	"testing"

	"github.com/greenify/plant-store/internal/infrastructure/store/mocks"
	"github.com/greenify/plant-store/internal/model"
	"github.com/greenify/plant-store/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCatalogService() (*Service, *mocks.MemoryStore) {
	memStore := mocks.NewMemoryStore()
	return NewService(memStore, zap.NewNop()), memStore
}

func validInput() PlantInput {
	return PlantInput{
		Name:        "Monstera Deliciosa",
		Description: "Split-leaf philodendron",
		Price:       1299,
		Categories:  []string{"Indoor", "indoor", " Tropical "},
		Stock:       10,
		ImageURL:    "https://img.example.com/monstera.jpg",
	}
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_Defaults(t *testing.T) {
	service, _ := newTestCatalogService()

	p, err := service.Create(context.Background(), validInput())

	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "GRN-000001", p.Code)
	assert.Equal(t, model.DefaultRating, p.Rating)
	assert.Equal(t, 0, p.ReviewCount)
	assert.True(t, p.IsActive)
	assert.Equal(t, []string{"indoor", "tropical"}, p.Categories)
}

func TestService_Create_SequentialCodes(t *testing.T) {
	service, _ := newTestCatalogService()
	ctx := context.Background()

	first, err := service.Create(ctx, validInput())
	require.NoError(t, err)
	second, err := service.Create(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, "GRN-000001", first.Code)
	assert.Equal(t, "GRN-000002", second.Code)
}

func TestService_Create_Invalid(t *testing.T) {
	lower := 500
	tests := []struct {
		name   string
		mutate func(in *PlantInput)
	}{
		{"missing name", func(in *PlantInput) { in.Name = "" }},
		{"zero price", func(in *PlantInput) { in.Price = 0 }},
		{"negative stock", func(in *PlantInput) { in.Stock = -1 }},
		{"original below price", func(in *PlantInput) { in.OriginalPrice = &lower }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newTestCatalogService()
			in := validInput()
			tt.mutate(&in)

			p, err := service.Create(context.Background(), in)

			assert.ErrorIs(t, err, ErrInvalidPlant)
			assert.Nil(t, p)
		})
	}
}

func TestService_Create_ValidationDetails(t *testing.T) {
	service, _ := newTestCatalogService()
	in := validInput()
	in.Price = 0

	_, err := service.Create(context.Background(), in)

	details := validation.FormatValidationError(err)
	assert.Contains(t, details, "price")
}

// ============================================
// Update / Delete Tests
// ============================================

func TestService_Update_KeepsRatingAndCode(t *testing.T) {
	service, memStore := newTestCatalogService()
	ctx := context.Background()
	seeded := memStore.SeedPlant(model.Plant{ID: "p1", Name: "Fern", Price: 300, Stock: 2, Rating: 4.2, ReviewCount: 7, IsActive: true})

	in := validInput()
	in.Price = 450
	updated, err := service.Update(ctx, "p1", in)

	require.NoError(t, err)
	assert.Equal(t, 450, updated.Price)
	assert.Equal(t, seeded.Code, updated.Code)

	stored, err := memStore.Plants().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4.2, stored.Rating)
	assert.Equal(t, 7, stored.ReviewCount)
	assert.Equal(t, "Monstera Deliciosa", stored.Name)
}

func TestService_Update_NotFound(t *testing.T) {
	service, _ := newTestCatalogService()

	_, err := service.Update(context.Background(), "missing", validInput())

	assert.ErrorIs(t, err, ErrPlantNotFound)
}

func TestService_Delete_IsSoft(t *testing.T) {
	service, memStore := newTestCatalogService()
	ctx := context.Background()
	memStore.SeedPlant(model.Plant{ID: "p1", Name: "Fern", Price: 300, IsActive: true})

	require.NoError(t, service.Delete(ctx, "p1"))

	_, err := service.Get(ctx, "p1")
	assert.ErrorIs(t, err, ErrPlantNotFound)

	stored, err := memStore.Plants().Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestService_Delete_NotFound(t *testing.T) {
	service, _ := newTestCatalogService()

	assert.ErrorIs(t, service.Delete(context.Background(), "missing"), ErrPlantNotFound)
}

// ============================================
// List Tests
// ============================================

func TestService_List_Filters(t *testing.T) {
	service, memStore := newTestCatalogService()
	ctx := context.Background()
	memStore.SeedPlant(model.Plant{ID: "p1", Name: "Snake Plant", Categories: []string{"indoor"}, Price: 1, IsActive: true})
	memStore.SeedPlant(model.Plant{ID: "p2", Name: "Rose", Categories: []string{"outdoor"}, Price: 1, IsActive: true})
	memStore.SeedPlant(model.Plant{ID: "p3", Name: "Old Cactus", Categories: []string{"indoor"}, Price: 1, IsActive: false})

	active, err := service.List(ctx, model.PlantFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	indoor, err := service.List(ctx, model.PlantFilter{Category: "indoor"})
	require.NoError(t, err)
	require.Len(t, indoor, 1)
	assert.Equal(t, "p1", indoor[0].ID)

	search, err := service.List(ctx, model.PlantFilter{Search: " rose "})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "p2", search[0].ID)

	all, err := service.List(ctx, model.PlantFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
