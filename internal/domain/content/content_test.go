package content

import "testing"

func TestResolveStatus(t *testing.T) {
	cases := []struct {
		copy, image string
		want        Status
	}{
		{"Glow daily", "/static/images/a.png", StatusCompleted},
		{"", "/static/images/a.png", StatusDraft},
		{"Glow daily", "", StatusDraft},
	}
	for _, c := range cases {
		if got := ResolveStatus(c.copy, c.image); got != c.want {
			t.Fatalf("ResolveStatus(%q, %q): want=%s got=%s", c.copy, c.image, c.want, got)
		}
	}
}

func TestTargetDisplay(t *testing.T) {
	empty := Target{}
	if empty.AgeDisplay() != AgeAutoLabel || empty.GenderDisplay() != GenderAnyLabel {
		t.Fatalf("empty target: got age=%q gender=%q", empty.AgeDisplay(), empty.GenderDisplay())
	}
	multi := Target{Ages: []string{"20s", "30s"}, Genders: []string{"female"}}
	if multi.AgeDisplay() != "20s, 30s" || multi.GenderDisplay() != "female" {
		t.Fatalf("multi target: got age=%q gender=%q", multi.AgeDisplay(), multi.GenderDisplay())
	}
}

func TestImageURLPrefersLocal(t *testing.T) {
	img := Image{OriginalURL: "https://cdn/x.png", LocalURL: "/static/images/x.png"}
	if img.URL() != "/static/images/x.png" {
		t.Fatalf("URL: got=%q", img.URL())
	}
	img.LocalURL = ""
	if img.URL() != "https://cdn/x.png" {
		t.Fatalf("URL fallback: got=%q", img.URL())
	}
}

func TestPerformanceMetricsNil(t *testing.T) {
	var p *Performance
	if p.Metrics() != nil {
		t.Fatalf("nil performance should project to nil metrics")
	}
}
