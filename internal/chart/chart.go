// Package chart rasterises aggregate tables as bar charts and wraps them in
// HTML fragments with the PNG inlined as a data URI.
package chart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"html/template"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"spendboard/internal/aggregate"
)

const (
	DefaultWidth  = 960
	DefaultHeight = 480
)

// Plotly's default qualitative palette.
var palette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

// Spec describes how one table is drawn.
type Spec struct {
	Name       string
	Title      string
	XLabel     string
	YLabel     string
	GroupLabel string
	Stacked    bool
	TickAngle  float64 // degrees; negative slants labels up to the right
}

type Options struct {
	Width    int
	Height   int
	FontFile string // optional TTF; the built-in bitmap face is used otherwise
	FontSize float64
}

// Renderer draws charts. Font faces are not safe for concurrent use, so
// rendering is serialised.
type Renderer struct {
	mu        sync.Mutex
	width     int
	height    int
	face      font.Face
	titleFace font.Face
}

func NewRenderer(opts Options) (*Renderer, error) {
	r := &Renderer{
		width:     opts.Width,
		height:    opts.Height,
		face:      basicfont.Face7x13,
		titleFace: basicfont.Face7x13,
	}
	if r.width <= 0 {
		r.width = DefaultWidth
	}
	if r.height <= 0 {
		r.height = DefaultHeight
	}
	if opts.FontFile != "" {
		size := opts.FontSize
		if size <= 0 {
			size = 12
		}
		f, err := loadFont(opts.FontFile)
		if err != nil {
			return nil, err
		}
		r.face = newFace(f, size)
		r.titleFace = newFace(f, size*1.4)
	}
	return r, nil
}

func loadFont(path string) (*truetype.Font, error) {
	fontBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsed, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return parsed, nil
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Render returns the chart as an HTML figure. Empty tables produce a
// "No data" placeholder instead of an image.
func (r *Renderer) Render(spec Spec, t aggregate.Table) (template.HTML, error) {
	if t.Empty() {
		return placeholder(spec), nil
	}
	png, err := r.RenderPNG(spec, t)
	if err != nil {
		return "", err
	}
	title := html.EscapeString(spec.Title)
	return template.HTML(fmt.Sprintf(
		`<figure class="chart" id="chart-%s"><img src="data:image/png;base64,%s" alt="%s" width="%d" height="%d"><figcaption>%s</figcaption></figure>`,
		html.EscapeString(spec.Name), base64.StdEncoding.EncodeToString(png), title, r.width, r.height, title)), nil
}

func placeholder(spec Spec) template.HTML {
	title := html.EscapeString(spec.Title)
	return template.HTML(fmt.Sprintf(
		`<figure class="chart chart-empty" id="chart-%s"><div class="no-data">No data</div><figcaption>%s</figcaption></figure>`,
		html.EscapeString(spec.Name), title))
}

type series struct {
	name   string
	values []float64
}

// buildSeries lays the table out as one series per value of the second
// dimension, indexed by the distinct values of the first.
func buildSeries(t aggregate.Table) ([]string, []series) {
	xs := t.Groups(0)
	xi := make(map[string]int, len(xs))
	for i, x := range xs {
		xi[x] = i
	}
	if len(t.Dimensions) < 2 {
		s := series{values: make([]float64, len(xs))}
		for _, row := range t.Rows {
			s.values[xi[row.Keys[0]]] += row.Amount.Float64()
		}
		return xs, []series{s}
	}
	groups := t.Groups(1)
	gi := make(map[string]int, len(groups))
	out := make([]series, len(groups))
	for i, g := range groups {
		gi[g] = i
		out[i] = series{name: g, values: make([]float64, len(xs))}
	}
	for _, row := range t.Rows {
		out[gi[row.Keys[1]]].values[xi[row.Keys[0]]] += row.Amount.Float64()
	}
	return xs, out
}

func valueRange(ss []series, n int, stacked bool) (lo, hi float64) {
	for i := 0; i < n; i++ {
		var pos, neg float64
		for _, s := range ss {
			v := s.values[i]
			if stacked {
				if v >= 0 {
					pos += v
				} else {
					neg += v
				}
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		lo, hi = math.Min(lo, neg), math.Max(hi, pos)
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}

// RenderPNG draws the chart and returns the encoded PNG.
func (r *Renderer) RenderPNG(spec Spec, t aggregate.Table) ([]byte, error) {
	xs, ss := buildSeries(t)
	legend := len(t.Dimensions) > 1

	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContext(r.width, r.height)
	dc.SetHexColor("#FFFFFF")
	dc.Clear()

	cw, ch := float64(r.width), float64(r.height)
	left, top, right, bottom := 90.0, 50.0, 24.0, 64.0
	if spec.TickAngle != 0 {
		bottom = 110
	}
	dc.SetFontFace(r.face)
	legendW := 0.0
	if legend {
		legendW = r.legendWidth(dc, spec, ss)
		right += legendW
	}
	pw, ph := cw-left-right, ch-top-bottom
	if pw < 10 || ph < 10 {
		return nil, fmt.Errorf("chart %q: canvas %dx%d too small", spec.Name, r.width, r.height)
	}

	lo, hi := valueRange(ss, len(xs), spec.Stacked)
	lo, hi, step := niceScale(lo, hi, 5)
	yPx := func(v float64) float64 { return top + ph*(hi-v)/(hi-lo) }

	// Title
	dc.SetFontFace(r.titleFace)
	dc.SetHexColor("#2A3F5F")
	dc.DrawStringAnchored(spec.Title, cw/2, top/2, 0.5, 0.5)
	dc.SetFontFace(r.face)

	// Grid and y ticks
	dc.SetLineWidth(1)
	ticks := int(math.Round((hi - lo) / step))
	for k := 0; k <= ticks; k++ {
		v := lo + float64(k)*step
		y := yPx(v)
		dc.SetHexColor("#E5ECF6")
		dc.DrawLine(left, y, left+pw, y)
		dc.Stroke()
		dc.SetHexColor("#444444")
		dc.DrawStringAnchored(formatTick(v, step), left-8, y, 1, 0.5)
	}

	// Bars
	n := len(xs)
	slot := pw / float64(n)
	barW := math.Max(slot*0.8, 1)
	for i := 0; i < n; i++ {
		x0 := left + slot*float64(i) + (slot-barW)/2
		var pos, neg float64
		for j, s := range ss {
			v := s.values[i]
			if v == 0 {
				continue
			}
			dc.SetHexColor(palette[j%len(palette)])
			switch {
			case spec.Stacked || len(ss) == 1:
				base := pos
				if v < 0 {
					base = neg
				}
				a, b := yPx(base), yPx(base+v)
				dc.DrawRectangle(x0, math.Min(a, b), barW, math.Abs(b-a))
				if v < 0 {
					neg += v
				} else {
					pos += v
				}
			default:
				w := barW / float64(len(ss))
				a, b := yPx(0), yPx(v)
				dc.DrawRectangle(x0+w*float64(j), math.Min(a, b), w, math.Abs(b-a))
			}
			dc.Fill()
		}
	}

	// Axes
	dc.SetHexColor("#444444")
	dc.DrawLine(left, top+ph, left+pw, top+ph)
	dc.DrawLine(left, top, left, top+ph)
	if lo < 0 {
		dc.DrawLine(left, yPx(0), left+pw, yPx(0))
	}
	dc.Stroke()

	// X tick labels, thinned so they do not overlap
	every := labelStride(dc, xs, slot, spec.TickAngle)
	for i := 0; i < n; i += every {
		x := left + slot*(float64(i)+0.5)
		y := top + ph + 8
		if spec.TickAngle == 0 {
			dc.DrawStringAnchored(xs[i], x, y, 0.5, 1)
			continue
		}
		dc.Push()
		dc.RotateAbout(gg.Radians(spec.TickAngle), x, y)
		dc.DrawStringAnchored(xs[i], x, y, 1, 0.5)
		dc.Pop()
	}

	// Axis titles
	dc.DrawStringAnchored(spec.XLabel, left+pw/2, ch-12, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 16, top+ph/2)
	dc.DrawStringAnchored(spec.YLabel, 16, top+ph/2, 0.5, 0.5)
	dc.Pop()

	if legend {
		r.drawLegend(dc, spec, ss, cw-legendW, top, ph)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func groupName(s string) string {
	if s == "" {
		return "(blank)"
	}
	return s
}

func (r *Renderer) legendWidth(dc *gg.Context, spec Spec, ss []series) float64 {
	w, _ := dc.MeasureString(spec.GroupLabel)
	for _, s := range ss {
		sw, _ := dc.MeasureString(groupName(s.name))
		w = math.Max(w, sw+20)
	}
	return math.Min(w+20, 200)
}

func (r *Renderer) drawLegend(dc *gg.Context, spec Spec, ss []series, x, y, maxH float64) {
	const rowH = 18
	dc.SetHexColor("#2A3F5F")
	dc.DrawStringAnchored(spec.GroupLabel, x, y, 0, 0.5)
	for i, s := range ss {
		ry := y + rowH*float64(i+1)
		if ry > y+maxH {
			dc.SetHexColor("#444444")
			dc.DrawStringAnchored(fmt.Sprintf("+%d more", len(ss)-i), x, ry, 0, 0.5)
			return
		}
		dc.SetHexColor(palette[i%len(palette)])
		dc.DrawRectangle(x, ry-6, 12, 12)
		dc.Fill()
		dc.SetHexColor("#444444")
		dc.DrawStringAnchored(groupName(s.name), x+18, ry, 0, 0.5)
	}
}

func labelStride(dc *gg.Context, xs []string, slot, angle float64) int {
	need := 0.0
	for _, x := range xs {
		w, h := dc.MeasureString(x)
		if angle == 0 {
			need = math.Max(need, w+6)
		} else {
			need = math.Max(need, h+4)
		}
	}
	if slot <= 0 || need <= slot {
		return 1
	}
	return int(math.Ceil(need / slot))
}

// niceScale widens [lo, hi] to round tick boundaries with about n steps.
func niceScale(lo, hi float64, n int) (float64, float64, float64) {
	span := niceNum(hi-lo, false)
	step := niceNum(span/float64(n-1), true)
	return math.Floor(lo/step) * step, math.Ceil(hi/step) * step, step
}

func niceNum(x float64, round bool) float64 {
	exp := math.Floor(math.Log10(x))
	f := x / math.Pow(10, exp)
	var nf float64
	switch {
	case round && f < 1.5:
		nf = 1
	case round && f < 3:
		nf = 2
	case round && f < 7:
		nf = 5
	case round:
		nf = 10
	case f <= 1:
		nf = 1
	case f <= 2:
		nf = 2
	case f <= 5:
		nf = 5
	default:
		nf = 10
	}
	return nf * math.Pow(10, exp)
}

func formatTick(v, step float64) string {
	decimals := 0
	if step < 1 {
		decimals = int(math.Ceil(-math.Log10(step)))
	}
	scale := math.Pow(10, float64(decimals))
	v = math.Round(v*scale) / scale
	if v == 0 {
		v = 0 // drop negative zero
	}
	switch decimals {
	case 0:
		return humanize.FormatFloat("#,###.", v)
	case 1:
		return humanize.FormatFloat("#,###.#", v)
	case 2:
		return humanize.FormatFloat("#,###.##", v)
	default:
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}
}
