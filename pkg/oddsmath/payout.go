package oddsmath

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PotentialWinCents calcula o lucro (sem a devolução da stake) para uma
// stake nas odds americanas dadas, arredondado ao centavo.
// 10000 centavos a +150 → 15000
// 11000 centavos a -110 → 10000
func PotentialWinCents(stakeCents int64, american int) (int64, error) {
	if stakeCents <= 0 {
		return 0, fmt.Errorf("invalid stake: must be positive, got %d", stakeCents)
	}
	if !ValidPrice(american) {
		return 0, fmt.Errorf("invalid American odds: %d", american)
	}

	stake := decimal.NewFromInt(stakeCents)

	var win decimal.Decimal
	if american > 0 {
		win = stake.Mul(decimal.NewFromInt(int64(american))).Div(hundred)
	} else {
		win = stake.Mul(hundred).Div(decimal.NewFromInt(int64(-american)))
	}

	return win.Round(0).IntPart(), nil
}
