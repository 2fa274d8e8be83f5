package voice

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeSource struct {
	agent  string
	voices []Voice
	err    error
	calls  int
}

func (f *fakeSource) Agent() string { return f.agent }

func (f *fakeSource) Voices(ctx context.Context) ([]Voice, error) {
	f.calls++
	return f.voices, f.err
}

// chromeAgent and edgeAgent mirror real browser identification strings.
const (
	chromeAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	edgeAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51"
)

func chromeVoices() []Voice {
	return []Voice{
		{URI: "g-de", Name: "Google Deutsch", Lang: "de-DE"},
		{URI: "g-us", Name: "Google US English", Lang: "en-US"},
		{URI: "g-gb", Name: "Google UK English Female", Lang: "en-GB"},
		{URI: "g-ja", Name: "Google 日本語", Lang: "ja-JP"},
		{URI: "g-cn", Name: "Google 普通话（中国大陆）", Lang: "zh-CN"},
		{URI: "g-hk", Name: "Google 粤語（香港）", Lang: "zh-HK"},
		{URI: "g-tw", Name: "Google 國語（臺灣）", Lang: "zh-TW"},
		{URI: "os-us", Name: "Chrome OS US English", Lang: "en-US"},
	}
}

func edgeVoices() []Voice {
	return []Voice{
		{URI: "m-ar", Name: "Microsoft Hoda Online (Natural) - Arabic (Egypt)", Lang: "ar-EG"},
		{URI: "m-gb", Name: "Microsoft Ryan Online (Natural) - English (United Kingdom)", Lang: "en-GB"},
		{URI: "m-us", Name: "Microsoft Emma Online (Natural) - English (United States)", Lang: "en-US"},
		{URI: "m-au", Name: "Microsoft Natasha Online (Natural) - English (Australia)", Lang: "en-AU"},
		{URI: "m-in", Name: "Microsoft Neerja Online (Natural) - English (India)", Lang: "en-IN"},
		{URI: "m-ja", Name: "Microsoft Nanami Online (Natural) - Japanese (Japan)", Lang: "ja-JP"},
		{URI: "m-hk", Name: "Microsoft HiuGaai Online (Natural) - Chinese (Hong Kong)", Lang: "zh-HK"},
		{URI: "m-cn", Name: "Microsoft Yaoyao - Chinese (Simplified, PRC)", Lang: "zh-CN"},
		{URI: "m-tw", Name: "Microsoft HsiaoChen Online (Natural) - Chinese (Taiwan)", Lang: "zh-TW"},
		{URI: "x-us", Name: "Desktop US English", Lang: "en-US"},
	}
}

func uris(voices []Voice) []string {
	out := make([]string, len(voices))
	for i, v := range voices {
		out[i] = v.URI
	}
	return out
}

func TestPopulateChromeFilter(t *testing.T) {
	src := &fakeSource{agent: chromeAgent, voices: chromeVoices()}
	var c Catalog
	if err := c.Populate(context.Background(), src); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}

	// Google-named voices in the allowed languages, zh-HK excluded,
	// original order preserved.
	want := []string{"g-us", "g-gb", "g-ja", "g-cn", "g-tw"}
	if got := uris(c.Voices()); !reflect.DeepEqual(got, want) {
		t.Errorf("chrome catalog = %v, want %v", got, want)
	}
	if c.Vendor() != VendorChrome {
		t.Errorf("Vendor() = %v, want %v", c.Vendor(), VendorChrome)
	}
}

func TestPopulateEdgeFilterAndOrder(t *testing.T) {
	src := &fakeSource{agent: edgeAgent, voices: edgeVoices()}
	var c Catalog
	if err := c.Populate(context.Background(), src); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}

	// zh first (zh-HK dropped, original zh order kept), then the named
	// English regions, then remaining en, then ja. en-IN is not in the
	// fixed English set and zh/ja prefixed rules don't admit it.
	want := []string{"m-cn", "m-tw", "m-us", "m-au", "m-gb", "m-ja"}
	if got := uris(c.Voices()); !reflect.DeepEqual(got, want) {
		t.Errorf("edge catalog = %v, want %v", got, want)
	}
}

func TestPopulateGenericFilter(t *testing.T) {
	voices := []Voice{
		{URI: "v1", Name: "anna", Lang: "de-DE"},
		{URI: "v2", Name: "northern_english_male", Lang: "en-GB"},
		{URI: "v3", Name: "huayan", Lang: "zh-CN"},
		{URI: "v4", Name: "sandaau", Lang: "zh-HK"},
		{URI: "v5", Name: "takumi", Lang: "ja-JP"},
	}
	src := &fakeSource{agent: "wyoming-piper/1.5", voices: voices}
	var c Catalog
	if err := c.Populate(context.Background(), src); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}

	// No vendor-name filter, no sort; language allow-list still applies.
	want := []string{"v2", "v3", "v5"}
	if got := uris(c.Voices()); !reflect.DeepEqual(got, want) {
		t.Errorf("generic catalog = %v, want %v", got, want)
	}
}

func TestPopulateDeterministic(t *testing.T) {
	first := &fakeSource{agent: edgeAgent, voices: edgeVoices()}
	second := &fakeSource{agent: edgeAgent, voices: edgeVoices()}

	var a, b Catalog
	if err := a.Populate(context.Background(), first); err != nil {
		t.Fatalf("first Populate() error = %v", err)
	}
	if err := b.Populate(context.Background(), second); err != nil {
		t.Fatalf("second Populate() error = %v", err)
	}
	if !reflect.DeepEqual(a.Voices(), b.Voices()) {
		t.Errorf("same input produced different catalogs:\n%v\n%v", a.Voices(), b.Voices())
	}
}

func TestPopulateIdempotent(t *testing.T) {
	src := &fakeSource{agent: chromeAgent, voices: chromeVoices()}
	var c Catalog
	if err := c.Populate(context.Background(), src); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}
	before := append([]Voice(nil), c.Voices()...)

	// A second call returns without consulting the source again.
	if err := c.Populate(context.Background(), src); err != nil {
		t.Fatalf("second Populate() error = %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source consulted %d times, want 1", src.calls)
	}
	if !reflect.DeepEqual(before, c.Voices()) {
		t.Errorf("second Populate mutated the catalog")
	}
}

func TestPopulateNoVoices(t *testing.T) {
	src := &fakeSource{agent: chromeAgent}
	var c Catalog
	err := c.Populate(context.Background(), src)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Populate() error = %v, want ErrUnsupported", err)
	}
	if !errors.Is(c.Err(), ErrUnsupported) {
		t.Errorf("Err() = %v, want ErrUnsupported", c.Err())
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestPopulateSourceError(t *testing.T) {
	boom := errors.New("socket closed")
	src := &fakeSource{agent: chromeAgent, err: boom}
	var c Catalog
	if err := c.Populate(context.Background(), src); !errors.Is(err, boom) {
		t.Fatalf("Populate() error = %v, want wrapped %v", err, boom)
	}
}

func TestRebuildBypassesGuard(t *testing.T) {
	src := &fakeSource{agent: chromeAgent, voices: chromeVoices()}
	var c Catalog
	if err := c.Populate(context.Background(), src); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}

	src.voices = []Voice{{URI: "g-only", Name: "Google US English", Lang: "en-US"}}
	if err := c.Rebuild(context.Background(), src); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if src.calls != 2 {
		t.Errorf("source consulted %d times, want 2", src.calls)
	}
	if got := uris(c.Voices()); !reflect.DeepEqual(got, []string{"g-only"}) {
		t.Errorf("rebuilt catalog = %v, want [g-only]", got)
	}
}

func TestRebuildClearsErrorState(t *testing.T) {
	src := &fakeSource{agent: chromeAgent}
	var c Catalog
	if err := c.Populate(context.Background(), src); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Populate() error = %v, want ErrUnsupported", err)
	}

	src.voices = chromeVoices()
	if err := c.Rebuild(context.Background(), src); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if c.Err() != nil {
		t.Errorf("Err() = %v after successful rebuild, want nil", c.Err())
	}
}

func TestResolve(t *testing.T) {
	src := &fakeSource{agent: chromeAgent, voices: chromeVoices()}
	var c Catalog
	if err := c.Populate(context.Background(), src); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}

	if v, ok := c.Resolve("g-tw"); !ok || v.Lang != "zh-TW" {
		t.Errorf("Resolve(g-tw) = %v, %v", v, ok)
	}
	if _, ok := c.Resolve("g-hk"); ok {
		t.Errorf("Resolve(g-hk) resolved a filtered-out voice")
	}
	if _, ok := c.Resolve(""); ok {
		t.Errorf("Resolve(\"\") = true, empty URI must never resolve")
	}
}
