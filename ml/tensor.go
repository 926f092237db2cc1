// tensor.go - Tensor-Interface fuer alle mathematischen Operationen
//
// Shapes sind row-major und werden von der aeussersten zur innersten
// Dimension angegeben (b, c, h, w). Operationen erzeugen neue Tensoren;
// Eingaben werden nie veraendert. Shape-Verletzungen sind fatale
// Programmierfehler und loesen im Backend ein panic aus.
package ml

type Tensor interface {
	// Dim gibt die Groesse der n-ten Dimension zurueck
	Dim(n int) int

	// Shape gibt alle Dimensionen zurueck
	Shape() []int

	// DType gibt den Datentyp zurueck
	DType() DType

	// Floats gibt die Werte in row-major-Reihenfolge zurueck
	Floats() []float32

	// Add addiert elementweise mit numpy-artigem Broadcasting
	Add(ctx Context, t2 Tensor) Tensor

	// Mul multipliziert elementweise mit numpy-artigem Broadcasting
	Mul(ctx Context, t2 Tensor) Tensor

	// Scale multipliziert alle Elemente mit einem Skalar
	Scale(ctx Context, s float64) Tensor

	// Matmul berechnet eine (gebatchte) Matrix-Multiplikation
	// [..., m, k] x [..., k, n] -> [..., m, n]. Ein 2D-Operand auf der
	// rechten Seite wird ueber alle fuehrenden Dimensionen geteilt.
	Matmul(ctx Context, t2 Tensor) Tensor

	// Softmax normalisiert die letzte Dimension zu einer Verteilung
	Softmax(ctx Context) Tensor

	// GELU wendet die exakte GELU-Aktivierung an (erf-Form)
	GELU(ctx Context) Tensor

	// L2Norm normalisiert die letzte Dimension auf Einheitslaenge
	L2Norm(ctx Context, eps float32) Tensor

	// LayerNorm normalisiert die letzte Dimension (Mittelwert-Subtraktion,
	// Division durch die Standardabweichung) mit optionalem weight/bias
	LayerNorm(ctx Context, weight, bias Tensor, eps float32) Tensor

	// VarianceNorm teilt die letzte Dimension durch die Standardabweichung
	// OHNE den Mittelwert zu subtrahieren (bias-freie LayerNorm-Variante)
	VarianceNorm(ctx Context, weight Tensor, eps float32) Tensor

	// Conv2D berechnet eine 2D-Faltung. Eingabe (b, cIn, h, w), Gewichte
	// (cOut, cIn/groups, kh, kw). groups == cIn ergibt eine Depthwise-Faltung.
	Conv2D(ctx Context, weight Tensor, stride0, stride1, padding0, padding1, dilation0, dilation1, groups int) Tensor

	// Reshape aendert die Shape bei gleicher Element-Anzahl
	Reshape(ctx Context, shape ...int) Tensor

	// Permute ordnet die Dimensionen um (gibt eine View zurueck)
	Permute(ctx Context, order ...int) Tensor

	// Contiguous materialisiert eine View in row-major-Speicherlayout
	Contiguous(ctx Context) Tensor

	// Chunk teilt die Dimension dim in n gleich grosse Teile
	Chunk(ctx Context, dim, n int) []Tensor

	// Concat haengt t2 entlang der Dimension dim an. Alle anderen
	// Dimensionen muessen uebereinstimmen.
	Concat(ctx Context, t2 Tensor, dim int) Tensor

	// SpaceToDepth verschiebt 2x2-Raumbloecke in die Kanal-Dimension
	// (b, c, h, w) -> (b, c*block*block, h/block, w/block)
	SpaceToDepth(ctx Context, block int) Tensor

	// DepthToSpace ist die Umkehrung von SpaceToDepth
	DepthToSpace(ctx Context, block int) Tensor

	// ResizeBilinear skaliert (b, c, h, w) bilinear auf (b, c, h2, w2).
	// Die Abtastung entspricht align_corners=false.
	ResizeBilinear(ctx Context, h2, w2 int) Tensor
}
