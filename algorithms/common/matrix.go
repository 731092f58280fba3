package common

import (
	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense column-major matrix. Element (r, c) lives at
// Data[c*Rows+r], so every column is a contiguous slice.
//
// Frames, spectra and band energies are all stored one column per
// analysis frame; the per-frame loops in the scorers then walk memory
// linearly.
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// NewMatrix allocates a zeroed rows x cols matrix
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// Reshape resizes the matrix, reusing the backing array when it is large
// enough. Contents are zeroed.
func (m *Matrix) Reshape(rows, cols int) {
	n := rows * cols
	if cap(m.Data) < n {
		m.Data = make([]float64, n)
	} else {
		m.Data = m.Data[:n]
		clear(m.Data)
	}
	m.Rows = rows
	m.Cols = cols
}

// At returns element (r, c)
func (m *Matrix) At(r, c int) float64 {
	return m.Data[c*m.Rows+r]
}

// Set sets element (r, c)
func (m *Matrix) Set(r, c int, v float64) {
	m.Data[c*m.Rows+r] = v
}

// Col returns column c as a slice aliasing the matrix storage
func (m *Matrix) Col(c int) []float64 {
	return m.Data[c*m.Rows : (c+1)*m.Rows]
}

// Row copies row r, columns [from, from+len(dst)), into dst
func (m *Matrix) Row(dst []float64, r, from int) []float64 {
	for i := range dst {
		dst[i] = m.Data[(from+i)*m.Rows+r]
	}
	return dst
}

// Dense returns a gonum view of the transpose (Cols x Rows, row-major)
// sharing m's storage. Writes through the view are visible in m.
func (m *Matrix) Dense() *mat.Dense {
	if m.Rows == 0 || m.Cols == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(m.Cols, m.Rows, m.Data)
}
