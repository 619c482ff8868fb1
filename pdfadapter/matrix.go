package pdfadapter

// matrix is a PDF-style affine transform: [a b 0; c d 0; e f 1], applied as
// x' = a*x + c*y + e, y' = b*x + d*y + f.
type matrix struct {
	a, b, c, d, e, f float64
}

func identityMatrix() matrix {
	return matrix{a: 1, d: 1}
}

// concat returns m composed with n such that a point is transformed by m
// first, then by n (n is the "outer" transform, matching PDF's `cm`
// operator semantics where the new CTM is m x n).
func (m matrix) concat(n matrix) matrix {
	return matrix{
		a: m.a*n.a + m.b*n.c,
		b: m.a*n.b + m.b*n.d,
		c: m.c*n.a + m.d*n.c,
		d: m.c*n.b + m.d*n.d,
		e: m.e*n.a + m.f*n.c + n.e,
		f: m.e*n.b + m.f*n.d + n.f,
	}
}

func (m matrix) transform(x, y float64) (float64, float64) {
	return m.a*x + m.c*y + m.e, m.b*x + m.d*y + m.f
}
