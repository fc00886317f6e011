package survival

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifetimeValidate(t *testing.T) {
	tests := []struct {
		name    string
		lt      Lifetime
		wantErr bool
	}{
		{"weibull", Lifetime{Family: Weibull, Shape: 2, Scale: 50}, false},
		{"normal", Lifetime{Family: Normal, Mean: 45, StdDev: 14}, false},
		{"folded", Lifetime{Family: FoldedNormal, Mean: 45, StdDev: 14}, false},
		{"zero scale", Lifetime{Family: Weibull, Shape: 2}, true},
		{"nan mean", Lifetime{Family: Normal, Mean: math.NaN(), StdDev: 1}, true},
		{"inf shape", Lifetime{Family: Weibull, Shape: math.Inf(1), Scale: 1}, true},
		{"unknown", Lifetime{Family: "gamma", Shape: 1, Scale: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lt.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseFamily(t *testing.T) {
	f, err := ParseFamily("FoldNorm")
	require.NoError(t, err)
	assert.Equal(t, FoldedNormal, f)

	_, err = ParseFamily("lognormal")
	assert.Error(t, err)
}

func TestCurveWeibull(t *testing.T) {
	sf, err := Curve(Lifetime{Family: Weibull, Shape: 2, Scale: 50}, 100)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sf[0])
	assert.InDelta(t, math.Exp(-1), sf[50], 1e-12)
	for a := 1; a < len(sf); a++ {
		if sf[a] > sf[a-1] {
			t.Fatalf("survival increased at age %d: %v > %v", a, sf[a], sf[a-1])
		}
	}
}

func TestCurveNormalFamilies(t *testing.T) {
	lt := Lifetime{Family: Normal, Mean: 45, StdDev: 14}
	sf, err := Curve(lt, 91)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sf[45], 1e-12)
	assert.Less(t, sf[0], 1.0)

	lt.Family = FoldedNormal
	fsf, err := Curve(lt, 91)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, fsf[0], 1e-12)
	for a := range fsf {
		assert.GreaterOrEqual(t, fsf[a], sf[a]-1e-15)
	}
}

func massBalance(t *testing.T, r *Result, stock []float64) {
	t.Helper()
	for y, s := range r.Stock() {
		if math.Abs(s-stock[y]) > 1e-6 {
			t.Fatalf("year %d: cohorts sum to %v, stock is %v", y, s, stock[y])
		}
	}
}

func TestStockDrivenGrowingStock(t *testing.T) {
	stock := make([]float64, 120)
	for i := range stock {
		stock[i] = 10 + float64(i)
	}
	r, err := StockDriven{}.Solve(context.Background(), stock, Lifetime{Family: Weibull, Shape: 2, Scale: 30})
	require.NoError(t, err)

	massBalance(t, r, stock)
	assert.Equal(t, 10.0, r.Inflow[0])

	// stock change = inflow - outflow
	out := r.TotalOutflow()
	for y := 1; y < len(stock); y++ {
		assert.InDelta(t, stock[y]-stock[y-1], r.Inflow[y]-out[y], 1e-9, "year %d", y)
	}
}

func TestStockDrivenNegativeInflowProportional(t *testing.T) {
	stock := []float64{100, 100, 100, 40, 40, 40}
	r, err := StockDriven{Policy: PolicyProportional}.Solve(context.Background(), stock, Lifetime{Family: Weibull, Shape: 3, Scale: 80})
	require.NoError(t, err)

	massBalance(t, r, stock)
	assert.Equal(t, 0.0, r.Inflow[3])
	for _, in := range r.Inflow {
		assert.GreaterOrEqual(t, in, 0.0)
	}

	// every cohort alive at year 3 lost the same fraction
	before := []float64{r.Cohorts.At(2, 0), r.Cohorts.At(2, 1), r.Cohorts.At(2, 2)}
	after := []float64{r.Cohorts.At(3, 0), r.Cohorts.At(3, 1), r.Cohorts.At(3, 2)}
	if before[1] > 0 && before[2] > 0 {
		assert.InDelta(t, after[0]/before[0], after[1]/before[1], 0.02)
	}

	out := r.TotalOutflow()
	assert.InDelta(t, 60, out[3], 1e-6)
}

func TestStockDrivenNegativeInflowOldestFirst(t *testing.T) {
	stock := []float64{50, 100, 100, 40}
	r, err := StockDriven{Policy: PolicyOldestFirst}.Solve(context.Background(), stock, Lifetime{Family: Weibull, Shape: 5, Scale: 500})
	require.NoError(t, err)

	massBalance(t, r, stock)
	assert.Equal(t, 0.0, r.Inflow[3])
	// cohort 0 (about 50 left) goes entirely before cohort 1 is touched
	assert.InDelta(t, 0, r.Cohorts.At(3, 0), 1e-9)
	assert.Greater(t, r.Cohorts.At(3, 1), 0.0)
}

func TestStockDrivenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := StockDriven{}.Solve(ctx, make([]float64, 10), Lifetime{Family: Weibull, Shape: 2, Scale: 50})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStockDrivenRejectsBadInput(t *testing.T) {
	_, err := StockDriven{}.Solve(context.Background(), nil, Lifetime{Family: Weibull, Shape: 2, Scale: 50})
	assert.Error(t, err)

	_, err = StockDriven{}.Solve(context.Background(), []float64{1}, Lifetime{Family: Weibull})
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyProportional, p)

	_, err = ParsePolicy("newest_first")
	assert.Error(t, err)
}

func BenchmarkStockDriven330(b *testing.B) {
	stock := make([]float64, 330)
	for i := range stock {
		stock[i] = 1000 * (1 + math.Sin(float64(i)/20))
	}
	lt := Lifetime{Family: Weibull, Shape: 1.443, Scale: 49.567}
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := (StockDriven{}).Solve(ctx, stock, lt); err != nil {
			b.Fatal(err)
		}
	}
}
