package market

import (
	"cmp"
	"math"
	"slices"
)

// GreaterRelativeExcessDemand orders markets by descending magnitude of
// relative excess demand. It is a strict weak ordering.
func GreaterRelativeExcessDemand(lhs, rhs *Market) bool {
	return math.Abs(lhs.RelativeExcessDemand()) > math.Abs(rhs.RelativeExcessDemand())
}

// CompareRelativeExcessDemand is the three-way form of
// GreaterRelativeExcessDemand for use with the slices package.
func CompareRelativeExcessDemand(lhs, rhs *Market) int {
	return cmp.Compare(math.Abs(rhs.RelativeExcessDemand()), math.Abs(lhs.RelativeExcessDemand()))
}

// SortByRelativeExcessDemand sorts ms worst first. Ties keep their order.
func SortByRelativeExcessDemand(ms []*Market) {
	slices.SortStableFunc(ms, CompareRelativeExcessDemand)
}
