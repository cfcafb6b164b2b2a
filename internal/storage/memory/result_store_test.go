package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
)

func TestResultStoreAppendPreservesOrder(t *testing.T) {
	t.Parallel()

	store := NewResultStore()
	store.Append(&catalog.ProductRecord{Name: "first"})
	store.Append(nil)
	store.Append(&catalog.ProductRecord{Name: "second"})

	got := store.Products()
	require.Len(t, got, 2)
	require.Equal(t, "first", got[0].Name)
	require.Equal(t, "second", got[1].Name)

	got[0] = nil
	require.NotNil(t, store.Products()[0], "Products must return a copy")
}

func TestResultStoreConcurrentAppend(t *testing.T) {
	t.Parallel()

	store := NewResultStore()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				store.Append(&catalog.ProductRecord{Kind: catalog.KindSimple})
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 500, store.Len())
}
