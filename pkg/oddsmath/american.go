package oddsmath

import (
	"fmt"
)

// AmericanToDecimal converte odds americanas para decimais.
// Americana +150 → decimal 2.50
// Americana -200 → decimal 1.50
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}

	if american > 0 {
		return (float64(american) / 100.0) + 1.0, nil
	}

	return (100.0 / float64(-american)) + 1.0, nil
}

// AmericanToImpliedProbability converte odds americanas na probabilidade
// implícita pelo preço (vig incluído).
// Americana +150 → 0.40
// Americana -150 → 0.60
func AmericanToImpliedProbability(american int) (float64, error) {
	decimal, err := AmericanToDecimal(american)
	if err != nil {
		return 0, err
	}

	return 1.0 / decimal, nil
}

// ValidPrice diz se american é um preço cotável. As casas cotam odds
// americanas em +100/-100 ou além; qualquer valor dentro dessa faixa é um
// preço malformado ou truncado.
func ValidPrice(american int) bool {
	return american >= 100 || american <= -100
}
