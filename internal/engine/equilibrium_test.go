package engine

import (
	"context"
	"testing"

	"github.com/efreitasn/stockmatch/internal/domain"
	"github.com/efreitasn/stockmatch/internal/store"
)

func newTestCalculator() (*EquilibriumCalculator, *store.Memory) {
	mem := store.NewMemory()
	return NewEquilibriumCalculator(mem, NewStockLocks()), mem
}

func setPrice(t *testing.T, st store.Store, stock *domain.Stock, price string) {
	t.Helper()
	p, _ := domain.ParseMoney(price)
	if err := stock.UpdatePrice(p); err != nil {
		t.Fatalf("UpdatePrice: %v", err)
	}
	if err := st.Stocks().Save(context.Background(), stock); err != nil {
		t.Fatalf("save stock: %v", err)
	}
}

func TestCalculate_EmptyBook(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"no current price", "", "0.00"},
		{"with current price", "47.25", "47.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, st := newTestCalculator()
			stock := seedStock(t, st, "XYZ")
			if tt.price != "" {
				setPrice(t, st, stock, tt.price)
			}

			eq, err := calc.Calculate(context.Background(), stock.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if eq.EquilibriumPrice.String() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, eq.EquilibriumPrice)
			}
			if eq.MatchableVolume != 0 || eq.TotalBuyVolume != 0 || eq.TotalSellVolume != 0 {
				t.Errorf("expected zero volumes, got %+v", eq)
			}
			if eq.StockID != stock.ID {
				t.Errorf("expected stock id %s, got %s", stock.ID, eq.StockID)
			}
		})
	}
}

func TestCalculate_OneSidedBook(t *testing.T) {
	calc, st := newTestCalculator()
	stock := seedStock(t, st, "XYZ")
	setPrice(t, st, stock, "40")
	placeOrder(t, st, "b", stock.ID, domain.OrderTypeBuy, 25, "50", 0)

	eq, err := calc.Calculate(context.Background(), stock.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eq.EquilibriumPrice.String() != "40.00" {
		t.Errorf("expected current price 40.00, got %s", eq.EquilibriumPrice)
	}
	if eq.TotalBuyVolume != 25 || eq.MatchableVolume != 0 {
		t.Errorf("unexpected volumes %+v", eq)
	}
}

func TestCalculate_NoOverlap(t *testing.T) {
	t.Run("falls back to midpoint", func(t *testing.T) {
		calc, st := newTestCalculator()
		stock := seedStock(t, st, "XYZ")
		placeOrder(t, st, "b", stock.ID, domain.OrderTypeBuy, 10, "48", 0)
		placeOrder(t, st, "s", stock.ID, domain.OrderTypeSell, 10, "51", 1)

		eq, _ := calc.Calculate(context.Background(), stock.ID)
		if eq.EquilibriumPrice.String() != "49.50" {
			t.Errorf("expected midpoint 49.50, got %s", eq.EquilibriumPrice)
		}
		if eq.MatchableVolume != 0 {
			t.Errorf("expected no matchable volume, got %d", eq.MatchableVolume)
		}
	})

	t.Run("prefers current price", func(t *testing.T) {
		calc, st := newTestCalculator()
		stock := seedStock(t, st, "XYZ")
		setPrice(t, st, stock, "45")
		placeOrder(t, st, "b", stock.ID, domain.OrderTypeBuy, 10, "48", 0)
		placeOrder(t, st, "s", stock.ID, domain.OrderTypeSell, 10, "51", 1)

		eq, _ := calc.Calculate(context.Background(), stock.ID)
		if eq.EquilibriumPrice.String() != "45.00" {
			t.Errorf("expected current price 45.00, got %s", eq.EquilibriumPrice)
		}
	})
}

func TestCalculate_MaximizesMatchableVolume(t *testing.T) {
	calc, st := newTestCalculator()
	stock := seedStock(t, st, "XYZ")
	placeOrder(t, st, "b1", stock.ID, domain.OrderTypeBuy, 10, "52", 0)
	placeOrder(t, st, "b2", stock.ID, domain.OrderTypeBuy, 10, "50", 1)
	placeOrder(t, st, "s1", stock.ID, domain.OrderTypeSell, 5, "49", 2)
	placeOrder(t, st, "s2", stock.ID, domain.OrderTypeSell, 10, "51", 3)

	eq, err := calc.Calculate(context.Background(), stock.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// At 52: buys ≥ 52 = 10, sells ≤ 52 = 15. Lower prices never beat 10.
	if eq.EquilibriumPrice.String() != "52.00" {
		t.Errorf("expected 52.00, got %s", eq.EquilibriumPrice)
	}
	if eq.MatchableVolume != 10 || eq.BuyVolumeAtPrice != 10 || eq.SellVolumeAtPrice != 15 {
		t.Errorf("unexpected volumes %+v", eq)
	}
	if eq.TotalBuyVolume != 20 || eq.TotalSellVolume != 15 {
		t.Errorf("unexpected totals %+v", eq)
	}
}

func TestCalculate_PicksInteriorPrice(t *testing.T) {
	calc, st := newTestCalculator()
	stock := seedStock(t, st, "XYZ")
	placeOrder(t, st, "b1", stock.ID, domain.OrderTypeBuy, 5, "53", 0)
	placeOrder(t, st, "b2", stock.ID, domain.OrderTypeBuy, 20, "51", 1)
	placeOrder(t, st, "s1", stock.ID, domain.OrderTypeSell, 20, "50", 2)
	placeOrder(t, st, "s2", stock.ID, domain.OrderTypeSell, 20, "52", 3)

	eq, _ := calc.Calculate(context.Background(), stock.ID)
	// 53 → min(5, 40)=5; 52 → min(5, 40)=5; 51 → min(25, 20)=20; 50 → min(25, 20)=20.
	if eq.EquilibriumPrice.String() != "51.00" || eq.MatchableVolume != 20 {
		t.Errorf("expected 20 at 51.00, got %d at %s", eq.MatchableVolume, eq.EquilibriumPrice)
	}
}

func TestCalculate_IgnoresFilledOrders(t *testing.T) {
	calc, st := newTestCalculator()
	stock := seedStock(t, st, "XYZ")
	filled := placeOrder(t, st, "b1", stock.ID, domain.OrderTypeBuy, 10, "60", 0)
	_ = filled.Fill(10)
	_ = st.Orders().Save(context.Background(), filled)
	partial := placeOrder(t, st, "b2", stock.ID, domain.OrderTypeBuy, 10, "50", 1)
	_ = partial.Fill(4)
	_ = st.Orders().Save(context.Background(), partial)
	placeOrder(t, st, "s1", stock.ID, domain.OrderTypeSell, 10, "50", 2)

	eq, _ := calc.Calculate(context.Background(), stock.ID)
	if eq.TotalBuyVolume != 6 {
		t.Errorf("expected buy volume 6 from the partial order only, got %d", eq.TotalBuyVolume)
	}
	if eq.MatchableVolume != 6 || eq.EquilibriumPrice.String() != "50.00" {
		t.Errorf("expected 6 at 50.00, got %d at %s", eq.MatchableVolume, eq.EquilibriumPrice)
	}
}

func TestCalculate_DoesNotMutate(t *testing.T) {
	calc, st := newTestCalculator()
	stock := seedStock(t, st, "XYZ")
	buy := placeOrder(t, st, "b", stock.ID, domain.OrderTypeBuy, 10, "50", 0)
	placeOrder(t, st, "s", stock.ID, domain.OrderTypeSell, 10, "48", 1)

	if _, err := calc.Calculate(context.Background(), stock.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o := mustGetOrder(t, st, buy.ID); o.RemainingQuantity != 10 {
		t.Errorf("expected order untouched, remaining %d", o.RemainingQuantity)
	}
	got, _ := st.Stocks().FindByID(context.Background(), stock.ID)
	if got.CurrentPrice != nil {
		t.Errorf("expected no price change, got %s", got.CurrentPrice)
	}
}

// lockCheckingRepos records whether the stock lock was held while the
// stock was read.
type lockCheckingRepos struct {
	store.Repositories
	locks    *StockLocks
	unlocked *bool
}

func (r lockCheckingRepos) Stocks() store.StockRepository {
	return lockCheckingStocks{StockRepository: r.Repositories.Stocks(), r: r}
}

type lockCheckingStocks struct {
	store.StockRepository
	r lockCheckingRepos
}

func (s lockCheckingStocks) FindByID(ctx context.Context, id string) (*domain.Stock, error) {
	if mu := s.r.locks.Get(id); mu.TryLock() {
		*s.r.unlocked = true
		mu.Unlock()
	}
	return s.StockRepository.FindByID(ctx, id)
}

func TestCalculate_ReadsPriceUnderStockLock(t *testing.T) {
	mem := store.NewMemory()
	locks := NewStockLocks()
	var unlocked bool
	calc := NewEquilibriumCalculator(lockCheckingRepos{Repositories: mem, locks: locks, unlocked: &unlocked}, locks)

	stock := seedStock(t, mem, "XYZ")
	setPrice(t, mem, stock, "47.25")

	eq, err := calc.Calculate(context.Background(), stock.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unlocked {
		t.Error("stock price was read without holding the stock lock")
	}
	if eq.EquilibriumPrice.String() != "47.25" {
		t.Errorf("expected 47.25, got %s", eq.EquilibriumPrice)
	}
}
