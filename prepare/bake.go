package prepare

import (
	"fmt"
	"math"

	"github.com/gogpu/shadergraph/scene"
)

// BakeKind identifies the form of a baked result.
type BakeKind int

const (
	// KindValue is a folded constant value.
	KindValue BakeKind = iota + 1
	// KindVertices is a triangle list of x, y, u, v vertices.
	KindVertices
	// KindInstances is a list of x, y per-instance offsets.
	KindInstances
	// KindPixels is an RGBA8 image.
	KindPixels
)

func (k BakeKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindVertices:
		return "vertices"
	case KindInstances:
		return "instances"
	case KindPixels:
		return "pixels"
	}
	return fmt.Sprintf("BakeKind(%d)", int(k))
}

// BakeKey identifies a baked result.
type BakeKey struct {
	NodeID string
	PortID string
	Kind   BakeKind
}

// Baked is a pre-evaluated node output.
//
// Vertex and instance coordinates are in pixels relative to the center of
// the coordinate domain, y up. Texture coordinates have a bottom-left
// origin. Pixels rows run top to bottom.
type Baked struct {
	Values    []float64
	Vertices  []float32
	Instances []float32
	Pixels    []byte
	Width     int
	Height    int
}

// Bounds returns the axis-aligned bounds of the vertices.
func (b *Baked) Bounds() (minX, minY, maxX, maxY float32) {
	if len(b.Vertices) < 4 {
		return 0, 0, 0, 0
	}
	minX, minY = b.Vertices[0], b.Vertices[1]
	maxX, maxY = minX, minY
	for i := 0; i+3 < len(b.Vertices); i += 4 {
		x, y := b.Vertices[i], b.Vertices[i+1]
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return minX, minY, maxX, maxY
}

// InstanceCount returns the number of instances, at least one.
func (b *Baked) InstanceCount() int {
	if n := len(b.Instances) / 2; n > 0 {
		return n
	}
	return 1
}

type baker struct {
	s      *scene.Scene
	nodes  map[string]*scene.Node
	inputs Inputs
	out    map[BakeKey]*Baked
}

// BakeConstants pre-evaluates, in topological order, every node output
// whose inputs are all constant: folded values, geometry vertices,
// instance layouts and text pixels. Geometry that depends on a
// non-constant input is an error.
func BakeConstants(s *scene.Scene, order []string) (map[BakeKey]*Baked, error) {
	b := &baker{
		s:      s,
		nodes:  s.Index(),
		inputs: IndexInputs(s),
		out:    make(map[BakeKey]*Baked),
	}
	for _, id := range order {
		n := b.nodes[id]
		if err := b.bake(n); err != nil {
			return nil, &RewriteError{Pass: "bake", NodeID: id, Err: err}
		}
	}
	return b.out, nil
}

func (b *baker) bake(n *scene.Node) error {
	switch n.Type {
	case "Rect":
		return b.rect(n)
	case "Circle":
		return b.circle(n)
	case "Transform2D":
		return b.transform(n)
	case "Instances":
		return b.instances(n)
	case TypeText:
		return b.text(n)
	}
	port, vals, ok := b.fold(n)
	if ok {
		b.out[BakeKey{n.ID, port, KindValue}] = &Baked{Values: vals}
	}
	if n.Type == "Split" && ok {
		for i, c := range []string{"x", "y", "z", "w"} {
			if i < len(vals) {
				b.out[BakeKey{n.ID, c, KindValue}] = &Baked{Values: vals[i : i+1]}
			}
		}
	}
	return nil
}

// value returns the baked value on the connection landing at one of ports.
// connected reports whether any such connection exists.
func (b *baker) value(nodeID string, ports ...string) (vals []float64, connected, ok bool) {
	c, found := b.inputs.Find(nodeID, ports...)
	if !found {
		return nil, false, false
	}
	if v, ok := b.out[BakeKey{c.From.NodeID, c.From.PortID, KindValue}]; ok {
		return v.Values, true, true
	}
	return nil, true, false
}

// param returns a constant input, falling back to the node parameter.
func (b *baker) param(n *scene.Node, port, param string, def []float64) ([]float64, error) {
	vals, connected, ok := b.value(n.ID, port)
	if connected {
		if !ok {
			return nil, fmt.Errorf("input %q is not constant", port)
		}
		return vals, nil
	}
	if v, ok := n.Floats(param); ok {
		return v, nil
	}
	return def, nil
}

func (b *baker) scalar(n *scene.Node, port string, def float64) (float64, error) {
	v, err := b.param(n, port, port, []float64{def})
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return def, nil
	}
	return v[0], nil
}

func (b *baker) vec2(n *scene.Node, port string, def [2]float64) ([2]float64, error) {
	v, err := b.param(n, port, port, def[:])
	if err != nil {
		return def, err
	}
	switch len(v) {
	case 0:
		return def, nil
	case 1:
		return [2]float64{v[0], v[0]}, nil
	}
	return [2]float64{v[0], v[1]}, nil
}

// geometry returns the baked geometry wired into n's geometry input.
// A missing input yields nil.
func (b *baker) geometry(n *scene.Node) (*Baked, error) {
	c, ok := b.inputs.Find(n.ID, "geometry")
	if !ok {
		return nil, nil
	}
	g, ok := b.out[BakeKey{c.From.NodeID, c.From.PortID, KindVertices}]
	if !ok {
		return nil, fmt.Errorf("geometry input from %q is not constant", c.From.NodeID)
	}
	return g, nil
}

func (b *baker) rect(n *scene.Node) error {
	w, err := b.scalar(n, "width", 100)
	if err != nil {
		return err
	}
	h, err := b.scalar(n, "height", 100)
	if err != nil {
		return err
	}
	c, err := b.vec2(n, "center", [2]float64{})
	if err != nil {
		return err
	}
	x0, y0 := float32(c[0]-w/2), float32(c[1]-h/2)
	x1, y1 := float32(c[0]+w/2), float32(c[1]+h/2)
	b.out[BakeKey{n.ID, "geometry", KindVertices}] = &Baked{
		Vertices: []float32{
			x0, y0, 0, 0,
			x1, y0, 1, 0,
			x1, y1, 1, 1,
			x0, y0, 0, 0,
			x1, y1, 1, 1,
			x0, y1, 0, 1,
		},
		Width:  int(math.Round(w)),
		Height: int(math.Round(h)),
	}
	return nil
}

func (b *baker) circle(n *scene.Node) error {
	r, err := b.scalar(n, "radius", 50)
	if err != nil {
		return err
	}
	c, err := b.vec2(n, "center", [2]float64{})
	if err != nil {
		return err
	}
	segs := max(n.IntOr("segments", 32), 3)
	verts := make([]float32, 0, segs*12)
	point := func(i int) (x, y, u, v float32) {
		a := 2 * math.Pi * float64(i%segs) / float64(segs)
		sin, cos := math.Sincos(a)
		return float32(c[0] + r*cos), float32(c[1] + r*sin), float32(0.5 + 0.5*cos), float32(0.5 + 0.5*sin)
	}
	for i := range segs {
		x0, y0, u0, v0 := point(i)
		x1, y1, u1, v1 := point(i + 1)
		verts = append(verts,
			float32(c[0]), float32(c[1]), 0.5, 0.5,
			x0, y0, u0, v0,
			x1, y1, u1, v1)
	}
	d := int(math.Round(2 * r))
	b.out[BakeKey{n.ID, "geometry", KindVertices}] = &Baked{Vertices: verts, Width: d, Height: d}
	return nil
}

func (b *baker) transform(n *scene.Node) error {
	g, err := b.geometry(n)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("geometry input is not connected")
	}
	t, err := b.vec2(n, "translate", [2]float64{})
	if err != nil {
		return err
	}
	sc, err := b.vec2(n, "scale", [2]float64{1, 1})
	if err != nil {
		return err
	}
	rot, err := b.scalar(n, "rotate", 0)
	if err != nil {
		return err
	}
	sin, cos := math.Sincos(rot)
	apply := func(x, y float32, translate bool) (float32, float32) {
		sx, sy := float64(x)*sc[0], float64(y)*sc[1]
		rx, ry := sx*cos-sy*sin, sx*sin+sy*cos
		if translate {
			rx += t[0]
			ry += t[1]
		}
		return float32(rx), float32(ry)
	}

	out := &Baked{Vertices: make([]float32, len(g.Vertices))}
	copy(out.Vertices, g.Vertices)
	for i := 0; i+3 < len(out.Vertices); i += 4 {
		out.Vertices[i], out.Vertices[i+1] = apply(out.Vertices[i], out.Vertices[i+1], true)
	}
	minX, minY, maxX, maxY := out.Bounds()
	out.Width, out.Height = int(math.Round(float64(maxX-minX))), int(math.Round(float64(maxY-minY)))
	b.out[BakeKey{n.ID, "geometry", KindVertices}] = out

	if inst, ok := b.out[b.instanceKey(n)]; ok {
		offsets := make([]float32, len(inst.Instances))
		for i := 0; i+1 < len(offsets); i += 2 {
			offsets[i], offsets[i+1] = apply(inst.Instances[i], inst.Instances[i+1], false)
		}
		b.out[BakeKey{n.ID, "geometry", KindInstances}] = &Baked{Instances: offsets}
	}
	return nil
}

// instanceKey returns the key of the instance layout wired into n's
// geometry input.
func (b *baker) instanceKey(n *scene.Node) BakeKey {
	c, _ := b.inputs.Find(n.ID, "geometry")
	return BakeKey{c.From.NodeID, c.From.PortID, KindInstances}
}

func (b *baker) instances(n *scene.Node) error {
	g, err := b.geometry(n)
	if err != nil {
		return err
	}
	count, err := b.scalar(n, "count", 1)
	if err != nil {
		return err
	}
	cols, err := b.scalar(n, "columns", 1)
	if err != nil {
		return err
	}
	spacing, err := b.vec2(n, "spacing", [2]float64{})
	if err != nil {
		return err
	}
	if count < 1 || cols < 1 {
		return fmt.Errorf("count and columns must be positive, got %v and %v", count, cols)
	}
	offsets := GridOffsets(int(count), int(cols), spacing[0], spacing[1])

	vert := &Baked{}
	if g != nil {
		vert = g
	}
	b.out[BakeKey{n.ID, "geometry", KindVertices}] = vert
	b.out[BakeKey{n.ID, "geometry", KindInstances}] = &Baked{Instances: offsets}
	return nil
}

// GridOffsets lays out count instances in rows of columns, centered on the
// origin, with row 0 at the top.
func GridOffsets(count, columns int, sx, sy float64) []float32 {
	columns = min(columns, count)
	rows := (count + columns - 1) / columns
	out := make([]float32, 0, count*2)
	for i := range count {
		col, row := i%columns, i/columns
		x := (float64(col) - float64(columns-1)/2) * sx
		y := (float64(rows-1)/2 - float64(row)) * sy
		out = append(out, float32(x), float32(y))
	}
	return out
}

// fold evaluates constant nodes and math over constant inputs.
func (b *baker) fold(n *scene.Node) (string, []float64, bool) {
	switch n.Type {
	case "Float", "Int", "Mat4":
		v, ok := n.Floats("value")
		return "value", v, ok
	case "Bool":
		v, ok := n.Bool("value")
		if !ok {
			return "", nil, false
		}
		if v {
			return "value", []float64{1}, true
		}
		return "value", []float64{0}, true
	case "Color":
		v, ok := n.Floats("value")
		return "color", v, ok
	case "Vec2", "Vec3", "Vec4":
		v, ok := n.Floats("value")
		if !ok {
			return "", nil, false
		}
		v = append([]float64(nil), v...)
		for i, c := range []string{"x", "y", "z", "w"}[:min(len(v), 4)] {
			in, connected, ok := b.value(n.ID, c)
			if !connected {
				continue
			}
			if !ok || len(in) == 0 {
				return "", nil, false
			}
			v[i] = in[0]
		}
		return "value", v, true
	case "Split":
		v, connected, ok := b.value(n.ID, "value")
		if !connected || !ok {
			return "", nil, false
		}
		return "value", v, true
	case "Combine":
		size := min(max(n.IntOr("size", 4), 2), 4)
		v := make([]float64, size)
		for i, c := range []string{"x", "y", "z", "w"}[:size] {
			in, connected, ok := b.value(n.ID, c)
			if connected && (!ok || len(in) == 0) {
				return "", nil, false
			}
			if connected {
				v[i] = in[0]
			}
		}
		return "value", v, true
	}
	if f, ok := unaryFolds[n.Type]; ok {
		x, _, ok := b.value(n.ID, UnaryInput...)
		if !ok {
			return "", nil, false
		}
		return "value", f(x), true
	}
	if f, ok := binaryFolds[n.Type]; ok {
		x, _, okA := b.value(n.ID, BinaryLeft...)
		y, _, okB := b.value(n.ID, BinaryRight...)
		if !okA || !okB {
			return "", nil, false
		}
		v, ok := f(x, y)
		return "value", v, ok
	}
	return "", nil, false
}

func componentwise(f func(float64) float64) func([]float64) []float64 {
	return func(x []float64) []float64 {
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = f(v)
		}
		return out
	}
}

func broadcast(f func(a, b float64) float64) func(a, b []float64) ([]float64, bool) {
	return func(a, b []float64) ([]float64, bool) {
		n := max(len(a), len(b))
		if (len(a) != n && len(a) != 1) || (len(b) != n && len(b) != 1) {
			return nil, false
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = f(a[min(i, len(a)-1)], b[min(i, len(b)-1)])
		}
		return out, true
	}
}

func length(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum)
}

var unaryFolds = map[string]func([]float64) []float64{
	"Sin":      componentwise(math.Sin),
	"Cos":      componentwise(math.Cos),
	"Tan":      componentwise(math.Tan),
	"Abs":      componentwise(math.Abs),
	"Floor":    componentwise(math.Floor),
	"Ceil":     componentwise(math.Ceil),
	"Fract":    componentwise(func(v float64) float64 { return v - math.Floor(v) }),
	"Sqrt":     componentwise(math.Sqrt),
	"Exp":      componentwise(math.Exp),
	"Log":      componentwise(math.Log),
	"Negate":   componentwise(func(v float64) float64 { return -v }),
	"Saturate": componentwise(func(v float64) float64 { return min(max(v, 0), 1) }),
	"OneMinus": componentwise(func(v float64) float64 { return 1 - v }),
	"Length":   func(x []float64) []float64 { return []float64{length(x)} },
	"Normalize": func(x []float64) []float64 {
		l := length(x)
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = v / l
		}
		return out
	},
}

var binaryFolds = map[string]func(a, b []float64) ([]float64, bool){
	"Add":      broadcast(func(a, b float64) float64 { return a + b }),
	"Subtract": broadcast(func(a, b float64) float64 { return a - b }),
	"Multiply": broadcast(func(a, b float64) float64 { return a * b }),
	"Divide":   broadcast(func(a, b float64) float64 { return a / b }),
	"Min":      broadcast(math.Min),
	"Max":      broadcast(math.Max),
	"Pow":      broadcast(math.Pow),
	"Mod":      broadcast(math.Mod),
	"Atan2":    broadcast(math.Atan2),
	"Step": broadcast(func(edge, x float64) float64 {
		if x >= edge {
			return 1
		}
		return 0
	}),
	"Dot": func(a, b []float64) ([]float64, bool) {
		if len(a) != len(b) {
			return nil, false
		}
		var sum float64
		for i := range a {
			sum += a[i] * b[i]
		}
		return []float64{sum}, true
	},
	"Distance": func(a, b []float64) ([]float64, bool) {
		d, ok := broadcast(func(a, b float64) float64 { return a - b })(a, b)
		if !ok {
			return nil, false
		}
		return []float64{length(d)}, true
	},
}
