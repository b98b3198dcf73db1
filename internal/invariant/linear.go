package invariant

import "math/big"

// Matrix is a row-major matrix of exact rationals, mirroring Linear.h's
// `using Matrix<T> = std::vector<std::vector<T>>`.
type Matrix [][]*big.Rat

// isZeroRow reports whether every entry of row is the rational zero,
// the Go analogue of Linear.h's isZero<T>.
func isZeroRow(row []*big.Rat) bool {
	for _, v := range row {
		if v.Sign() != 0 {
			return false
		}
	}
	return true
}

func cloneRow(row []*big.Rat) []*big.Rat {
	out := make([]*big.Rat, len(row))
	for i, v := range row {
		out[i] = new(big.Rat).Set(v)
	}
	return out
}

func cloneMatrix(m Matrix) Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = cloneRow(row)
	}
	return out
}

// multiplyRow scales every entry of row by c, matching Linear.h's
// multiplyRow (which returns a fresh vector rather than mutating).
func multiplyRow(row []*big.Rat, c *big.Rat) []*big.Rat {
	out := make([]*big.Rat, len(row))
	for i, v := range row {
		out[i] = new(big.Rat).Mul(v, c)
	}
	return out
}

// reducedRowEchelonForm reduces m to RREF in place (pivots normalized
// to 1, every other entry in a pivot column zeroed), the Go analogue of
// Linear.h's `void reducedRowEchelonForm(Matrix<mpq_class>&)`.
func reducedRowEchelonForm(m Matrix) {
	rows := len(m)
	if rows == 0 {
		return
	}
	cols := len(m[0])

	pivotRow := 0
	for col := 0; col < cols && pivotRow < rows; col++ {
		sel := -1
		for r := pivotRow; r < rows; r++ {
			if m[r][col].Sign() != 0 {
				sel = r
				break
			}
		}
		if sel < 0 {
			continue
		}
		m[pivotRow], m[sel] = m[sel], m[pivotRow]

		inv := new(big.Rat).Inv(m[pivotRow][col])
		m[pivotRow] = multiplyRow(m[pivotRow], inv)

		for r := 0; r < rows; r++ {
			if r == pivotRow || m[r][col].Sign() == 0 {
				continue
			}
			factor := new(big.Rat).Set(m[r][col])
			scaled := multiplyRow(m[pivotRow], factor)
			for c := 0; c < cols; c++ {
				m[r][c] = new(big.Rat).Sub(m[r][c], scaled[c])
			}
		}
		pivotRow++
	}
}

// linearlyIndependent reports whether newVector is independent of
// vectors, by row-reducing vectors with newVector appended and
// checking that no new zero row appeared beyond what vectors alone
// would have produced (Linear.h's linearlyIndependent).
func linearlyIndependent(vectors Matrix, newVector []*big.Rat) bool {
	if len(vectors) == 0 {
		return !isZeroRow(newVector)
	}
	rank := func(m Matrix) int {
		r := 0
		for _, row := range m {
			if !isZeroRow(row) {
				r++
			}
		}
		return r
	}
	base := cloneMatrix(vectors)
	reducedRowEchelonForm(base)
	extended := cloneMatrix(vectors)
	extended = append(extended, cloneRow(newVector))
	reducedRowEchelonForm(extended)
	return rank(extended) > rank(base)
}

// nullSpace returns a basis for the null space of m: every rational
// vector x such that m*x = 0, found by RREF'ing m and back-solving the
// free variables, the standard construction Linear.h's nullSpace
// declares without further comment in the header.
func nullSpace(m Matrix) Matrix {
	if len(m) == 0 {
		return nil
	}
	cols := len(m[0])
	reduced := cloneMatrix(m)
	reducedRowEchelonForm(reduced)

	pivotCols := make([]int, 0, len(reduced))
	pivotOfRow := make(map[int]int)
	for r, row := range reduced {
		for c := 0; c < cols; c++ {
			if row[c].Sign() != 0 {
				pivotCols = append(pivotCols, c)
				pivotOfRow[r] = c
				break
			}
		}
	}
	isPivot := make([]bool, cols)
	for _, c := range pivotCols {
		isPivot[c] = true
	}

	var basis Matrix
	for freeCol := 0; freeCol < cols; freeCol++ {
		if isPivot[freeCol] {
			continue
		}
		vec := make([]*big.Rat, cols)
		for i := range vec {
			vec[i] = new(big.Rat)
		}
		vec[freeCol] = big.NewRat(1, 1)
		for r, row := range reduced {
			pc, ok := pivotOfRow[r]
			if !ok || row[freeCol].Sign() == 0 {
				continue
			}
			vec[pc] = new(big.Rat).Neg(row[freeCol])
		}
		basis = append(basis, vec)
	}
	return basis
}

// ratToInt rescales a rational vector to the minimal-magnitude integer
// vector with the same direction: multiply through by the LCM of every
// denominator, then divide by the GCD of the resulting numerators — the
// Go analogue of Linear.h's ratToInt. A zero vector rescales to itself.
func ratToInt(vec []*big.Rat) []*big.Int {
	lcm := big.NewInt(1)
	for _, v := range vec {
		d := v.Denom()
		if d.Sign() == 0 {
			continue
		}
		g := new(big.Int).GCD(nil, nil, lcm, d)
		lcm = new(big.Int).Div(new(big.Int).Mul(lcm, d), g)
	}

	ints := make([]*big.Int, len(vec))
	for i, v := range vec {
		scaled := new(big.Rat).Mul(v, new(big.Rat).SetInt(lcm))
		ints[i] = new(big.Int).Set(scaled.Num()) // scaled is now integral by construction
	}

	gcd := big.NewInt(0)
	for _, n := range ints {
		abs := new(big.Int).Abs(n)
		if abs.Sign() == 0 {
			continue
		}
		gcd = new(big.Int).GCD(nil, nil, gcd, abs)
	}
	if gcd.Sign() == 0 {
		return ints
	}
	for i, n := range ints {
		ints[i] = new(big.Int).Div(n, gcd)
	}

	// Canonicalize sign: the first nonzero coefficient is positive, so
	// that two bases differing only by an overall -1 scale render
	// identically (not load-bearing for correctness, just determinism
	// for golden-output tests).
	for _, n := range ints {
		if n.Sign() > 0 {
			break
		}
		if n.Sign() < 0 {
			for i := range ints {
				ints[i] = new(big.Int).Neg(ints[i])
			}
			break
		}
	}
	return ints
}
