package types

// Category classifies an indicator variant by the role its output plays in a
// strategy. Bounded categories constrain the value range an algorithm may
// produce.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryRisk       Category = "risk"
	CategoryPrice      Category = "price"
	CategoryStopLoss   Category = "stop_loss"
	CategoryTakeProfit Category = "take_profit"
	CategoryCloseOrder Category = "close_order"
)

// AllCategories lists every valid category value, used for schema generation
// and config validation messages.
var AllCategories = []Category{
	CategoryGeneral,
	CategoryRisk,
	CategoryPrice,
	CategoryStopLoss,
	CategoryTakeProfit,
	CategoryCloseOrder,
}

// Bounds returns the inclusive value range enforced for the category. The
// second return is false for unbounded categories.
func (c Category) Bounds() (low, high float64, bounded bool) {
	switch c {
	case CategoryGeneral:
		return 0, 1, true
	case CategoryRisk:
		return 0, 100, true
	default:
		return 0, 0, false
	}
}

// AlgorithmID identifies one indicator family in the algorithm registry.
type AlgorithmID string

const (
	AlgorithmTimeWeightedAverage   AlgorithmID = "time_weighted_average"
	AlgorithmVolumeWeightedAverage AlgorithmID = "volume_weighted_average"
	AlgorithmLastPrice             AlgorithmID = "last_price"
	AlgorithmMomentum              AlgorithmID = "momentum"
	AlgorithmPriceRange            AlgorithmID = "price_range"
	AlgorithmRealizedVolatility    AlgorithmID = "realized_volatility"
	AlgorithmDrawdown              AlgorithmID = "drawdown"
	AlgorithmTrailingStop          AlgorithmID = "trailing_stop"
	AlgorithmFixedTakeProfit       AlgorithmID = "fixed_take_profit"
	AlgorithmWindowElapsed         AlgorithmID = "window_elapsed"
)
