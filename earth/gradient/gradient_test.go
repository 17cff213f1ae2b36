package gradient

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-reflect/earth/model"
)

func gradientModel() []model.Layer {
	top := model.NewLayer(5, 5.5, 3.2, 2.6)
	grad := model.NewLayer(30, 6.0, 3.5, 2.7)
	grad.VpGradient = 0.5 / 30
	grad.VsGradient = 0.1 / 30
	grad.Type = model.Crust
	hs := model.NewLayer(0, 8.0, 4.5, 3.3)
	hs.Type = model.Mantle

	return []model.Layer{top, grad, hs}
}

func thicknesses(layers []model.Layer) []float64 {
	out := make([]float64, len(layers))
	for i, l := range layers {
		out[i] = l.Thickness
	}

	return out
}

func TestApplyConservesThickness(t *testing.T) {
	for _, step := range []float64{0.1, 0.7, 1, 2.5, 3, 7, 10, 29.9, 30, 45, 1000} {
		layers := gradientModel()
		out, err := Apply(layers, 1, 0.02, 0.01, step)
		if err != nil {
			t.Fatalf("step %v: %v", step, err)
		}

		n := int(math.Ceil(30 / step))
		if n < 1 {
			n = 1
		}

		if len(out) != len(layers)-1+n {
			t.Fatalf("step %v: got %d layers, want %d", step, len(out), len(layers)-1+n)
		}

		sub := thicknesses(out[1 : 1+n])
		if got := floats.Sum(sub); math.Abs(got-30) > 1e-9 {
			t.Errorf("step %v: sublayer thickness sum %v, want 30", step, got)
		}

		if got := model.ColumnThickness(out); math.Abs(got-35) > 1e-9 {
			t.Errorf("step %v: column thickness %v, want 35", step, got)
		}
	}
}

func TestApplyValues(t *testing.T) {
	layers := gradientModel()

	out, err := Apply(layers, 1, 0.03, 0.015, 10)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(out) != 5 {
		t.Fatalf("got %d layers, want 5", len(out))
	}

	wantVp := []float64{6.0, 6.3, 6.6}
	wantVs := []float64{3.5, 3.65, 3.8}
	wantRho := []float64{2.7, 2.7 + 0.32*0.3, 2.7 + 2*0.32*0.3}

	for i := range 3 {
		sub := out[1+i]
		if sub.Thickness != 10 {
			t.Errorf("sublayer %d thickness %v, want 10", i, sub.Thickness)
		}

		if math.Abs(sub.Vp-wantVp[i]) > 1e-12 || math.Abs(sub.Vs-wantVs[i]) > 1e-12 || math.Abs(sub.Rho-wantRho[i]) > 1e-12 {
			t.Errorf("sublayer %d = (%v, %v, %v), want (%v, %v, %v)",
				i, sub.Vp, sub.Vs, sub.Rho, wantVp[i], wantVs[i], wantRho[i])
		}

		if sub.HasGradient() || sub.RhoGradient != 0 {
			t.Errorf("sublayer %d still has a gradient", i)
		}

		if sub.Type != model.Crust || sub.Qp != model.DefaultQp {
			t.Errorf("sublayer %d lost carried attributes: %+v", i, sub)
		}
	}

	hs := out[4]
	if hs.Thickness != 0 || hs.Vp != out[3].Vp || hs.Vs != out[3].Vs || hs.Rho != out[3].Rho {
		t.Errorf("halfspace not matched to last sublayer: %+v vs %+v", hs, out[3])
	}

	if hs.Type != model.Mantle {
		t.Errorf("halfspace type changed to %q", hs.Type)
	}

	if layers[1].VpGradient == 0 || len(layers) != 3 {
		t.Error("input layers were modified")
	}
}

func TestApplyRounding(t *testing.T) {
	layers := []model.Layer{model.NewLayer(3, 3.1, 1.8, 2.2), model.NewLayer(0, 4, 2, 2.5)}

	out, err := Apply(layers, 0, 0.041, 0.0, 1)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// 3.1 + 2*0.041 = 3.182 without representation noise
	if out[2].Vp != 3.182 {
		t.Errorf("rounded vp = %v, want 3.182", out[2].Vp)
	}

	out, err = Apply(layers, 0, 1.0/3, 0, 1, WithRoundDigits(2))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if out[1].Vp != 3.43 {
		t.Errorf("vp rounded to 2 digits = %v, want 3.43", out[1].Vp)
	}

	out, err = Apply(layers, 0, 1.0/3, 0, 1, WithRoundDigits(-1))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if out[1].Vp != 3.1+1.0/3 {
		t.Errorf("unrounded vp = %v, want %v", out[1].Vp, 3.1+1.0/3)
	}
}

func TestApplySingleSublayer(t *testing.T) {
	layers := gradientModel()

	out, err := Apply(layers, 1, 0.5/30, 0.1/30, 50)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(out) != 3 {
		t.Fatalf("got %d layers, want 3", len(out))
	}

	if out[1].Thickness != 30 || out[1].Vp != 6.0 || out[1].HasGradient() {
		t.Errorf("single sublayer = %+v", out[1])
	}
}

func TestApplyInvalidIndex(t *testing.T) {
	layers := gradientModel()

	for _, idx := range []int{-1, 2, 3, 10} {
		_, err := Apply(layers, idx, 0.01, 0.01, 5)
		if !errors.Is(err, model.ErrInvalidLayerIndex) {
			t.Errorf("index %d: got %v, want ErrInvalidLayerIndex", idx, err)
		}
	}
}

func TestApplyInvalidStep(t *testing.T) {
	for _, step := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Apply(gradientModel(), 1, 0.01, 0.01, step)
		if !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("step %v: got %v, want ErrInvalidParameter", step, err)
		}
	}
}

func TestEvaluate(t *testing.T) {
	layers := gradientModel()
	layers[0].VpGradient = 0.1
	layers[0].VsGradient = 0.05

	out, err := Evaluate(layers, 2)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// 5 km at 2 km steps -> 3 sublayers, 30 km -> 15 sublayers, halfspace
	if len(out) != 19 {
		t.Fatalf("got %d layers, want 19", len(out))
	}

	for i, l := range out {
		if l.HasGradient() {
			t.Errorf("layer %d still has a gradient", i)
		}
	}

	if err := model.ValidateLayers(out); err != nil {
		t.Errorf("result invalid: %v", err)
	}

	if got := model.ColumnThickness(out); math.Abs(got-35) > 1e-9 {
		t.Errorf("column thickness %v, want 35", got)
	}

	if got, want := out[18].Vp, out[17].Vp; got != want {
		t.Errorf("halfspace vp %v, want %v", got, want)
	}
}

func TestEvaluateIgnoresHalfspaceGradient(t *testing.T) {
	layers := []model.Layer{model.NewLayer(10, 6, 3.5, 2.7), model.NewLayer(0, 8, 4.5, 3.3)}
	layers[1].VpGradient = 0.3

	out, err := Evaluate(layers, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("got %d layers, want 2", len(out))
	}
}

func TestEvaluateDropsDensityOnlyGradient(t *testing.T) {
	layers := gradientModel()
	layers[0].RhoGradient = 0.02

	out, err := Evaluate(layers, 10)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// the 5 km layer is not expanded, its rho gradient is cleared
	if out[0].Thickness != 5 || out[0].Rho != 2.6 {
		t.Errorf("layer 0 = %+v, want the unexpanded 5 km layer", out[0])
	}

	for i, l := range out {
		if l.RhoGradient != 0 {
			t.Errorf("layer %d keeps rho gradient %v", i, l.RhoGradient)
		}
	}

	if layers[0].RhoGradient != 0.02 {
		t.Error("input layers modified")
	}
}

func TestEvaluateModel(t *testing.T) {
	m := model.New()
	m.GradientStep = 10
	m.Layers = gradientModel()

	out, err := EvaluateModel(m)
	if err != nil {
		t.Fatalf("EvaluateModel: %v", err)
	}

	if len(out.Layers) != 5 {
		t.Errorf("got %d layers, want 5", len(out.Layers))
	}

	if len(m.Layers) != 3 {
		t.Error("source model was modified")
	}

	one, err := ApplyModel(m, 1, 0.01, 0, 15)
	if err != nil {
		t.Fatalf("ApplyModel: %v", err)
	}

	if len(one.Layers) != 4 {
		t.Errorf("ApplyModel: got %d layers, want 4", len(one.Layers))
	}
}
