package index

import (
	"errors"
	"html/template"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sanctions-web/sanctions-web/pkg/checksum"
)

func loadFixture(t *testing.T) (*Index, []byte) {
	t.Helper()
	data, err := os.ReadFile("testdata/index.json")
	if err != nil {
		t.Fatal("ReadFile:", err)
	}
	idx, err := DecodeBytes(data, Options{BaseURL: "https://www.example.org/"})
	if err != nil {
		t.Fatalf("DecodeBytes() error: %v", err)
	}
	return idx, data
}

func names(datasets []*Dataset) []string {
	out := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, ds.Name)
	}
	return out
}

func TestDecode_PreservesOrderAndTypes(t *testing.T) {
	idx, _ := loadFixture(t)

	got := strings.Join(names(idx.Datasets()), ",")
	want := "us_ofac_sdn,eu_sanctions,eu_fsf,ext_gleif,sanctions"
	if got != want {
		t.Errorf("Datasets() order = %s, want %s", got, want)
	}

	ofac := idx.DatasetByName("us_ofac_sdn")
	if ofac == nil || !ofac.IsSource() {
		t.Fatalf("us_ofac_sdn = %+v, want a source dataset", ofac)
	}
	eu := idx.DatasetByName("eu_sanctions")
	if eu == nil || !eu.IsCollection() {
		t.Fatalf("eu_sanctions = %+v, want a collection", eu)
	}
	if ext := idx.DatasetByName("ext_gleif"); ext == nil || !ext.IsExternal() {
		t.Fatalf("ext_gleif = %+v, want an external dataset", ext)
	}
}

func TestDecode_DerivedLinks(t *testing.T) {
	idx, _ := loadFixture(t)

	ofac := idx.DatasetByName("us_ofac_sdn")
	if ofac.Link != "/datasets/us_ofac_sdn/" {
		t.Errorf("Link = %q", ofac.Link)
	}
	if ofac.PublicURL != "https://www.example.org/datasets/us_ofac_sdn/" {
		t.Errorf("PublicURL = %q", ofac.PublicURL)
	}
}

func TestDecode_DetailsSideTable(t *testing.T) {
	idx, _ := loadFixture(t)

	for _, ds := range idx.Datasets() {
		if idx.DatasetDetails(ds.Name) == nil {
			t.Errorf("DatasetDetails(%q) = nil for a dataset in the index", ds.Name)
		}
	}
	if idx.DatasetDetails("not_in_index") != nil {
		t.Error("DatasetDetails() returned details for an unknown name")
	}

	details := idx.DatasetDetails("us_ofac_sdn")
	if !strings.Contains(string(details.Description), "<strong>SDN</strong>") {
		t.Errorf("Description not rendered to HTML: %s", details.Description)
	}
	if details.Targets == nil || details.Targets.Total != 12023 {
		t.Errorf("Targets = %+v", details.Targets)
	}
	if len(details.Resources) != 1 || details.Resources[0].MimeType != "application/json+ftm" {
		t.Errorf("Resources = %+v", details.Resources)
	}
	if details.Resources[0].Timestamp.IsZero() {
		t.Error("resource timestamp not parsed")
	}

	// missing description and resources decode to empty values
	fsf := idx.DatasetDetails("eu_fsf")
	if fsf.Description != template.HTML("") {
		t.Errorf("eu_fsf description = %q, want empty", fsf.Description)
	}
	if fsf.Resources == nil || len(fsf.Resources) != 0 {
		t.Errorf("eu_fsf resources = %#v, want empty slice", fsf.Resources)
	}
}

func TestDecode_VariantFields(t *testing.T) {
	idx, _ := loadFixture(t)

	ofac := idx.DatasetByName("us_ofac_sdn")
	if ofac.Publisher == nil || ofac.Publisher.Name != "Office of Foreign Assets Control" {
		t.Errorf("source publisher = %+v", ofac.Publisher)
	}
	if ofac.Data == nil || ofac.Data.Format != "XML" {
		t.Errorf("source data = %+v", ofac.Data)
	}
	if ofac.Sources != nil {
		t.Errorf("source kept a sources list: %v", ofac.Sources)
	}

	eu := idx.DatasetByName("eu_sanctions")
	if eu.Publisher != nil || eu.Data != nil || eu.Collections != nil {
		t.Errorf("collection kept source-only fields: %+v", eu)
	}

	ext := idx.DatasetByName("ext_gleif")
	if ext.Data != nil {
		t.Errorf("external kept a data field: %+v", ext.Data)
	}
	if ext.Publisher == nil {
		t.Error("external lost its publisher")
	}
}

func TestDecode_Timestamps(t *testing.T) {
	idx, _ := loadFixture(t)
	ofac := idx.DatasetByName("us_ofac_sdn")

	want := time.Date(2024, 4, 30, 18, 10, 0, 0, time.UTC)
	if !ofac.LastChange.Equal(want) {
		t.Errorf("LastChange = %v, want %v", ofac.LastChange, want)
	}
	if ofac.LastExport.IsZero() {
		t.Error("LastExport not parsed")
	}
	if !idx.DatasetByName("eu_fsf").UpdatedAt.IsZero() {
		t.Error("missing updated_at should decode to the zero time")
	}
}

func TestDatasetByName(t *testing.T) {
	idx, _ := loadFixture(t)

	if idx.DatasetByName("us_ofac_sdn") == nil {
		t.Error("exact name not found")
	}
	for _, name := range []string{"", "US_OFAC_SDN", "us_ofac", "us_ofac_sdn "} {
		if ds := idx.DatasetByName(name); ds != nil {
			t.Errorf("DatasetByName(%q) = %s, want nil", name, ds.Name)
		}
	}
}

func TestDatasets_ReturnsCopy(t *testing.T) {
	idx, _ := loadFixture(t)

	list := idx.Datasets()
	list[0] = nil
	if idx.Datasets()[0] == nil {
		t.Error("modifying the returned slice changed the index")
	}
}

func TestCollectionsAndSources(t *testing.T) {
	idx, _ := loadFixture(t)

	if got := strings.Join(names(idx.Collections()), ","); got != "eu_sanctions,sanctions" {
		t.Errorf("Collections() = %s", got)
	}
	if got := strings.Join(names(idx.Sources()), ","); got != "us_ofac_sdn,eu_fsf,ext_gleif" {
		t.Errorf("Sources() = %s", got)
	}
}

func TestCollectionsOf(t *testing.T) {
	idx, _ := loadFixture(t)

	tests := []struct {
		dataset string
		want    string
	}{
		// listed by the "sanctions" collection
		{"us_ofac_sdn", "sanctions"},
		// listed by two collections
		{"eu_fsf", "eu_sanctions,sanctions"},
		// no collection lists it; its own "default" entry is unknown
		{"ext_gleif", ""},
	}
	for _, tt := range tests {
		got := strings.Join(names(idx.CollectionsOf(idx.DatasetByName(tt.dataset))), ",")
		if got != tt.want {
			t.Errorf("CollectionsOf(%s) = %q, want %q", tt.dataset, got, tt.want)
		}
	}
	if idx.CollectionsOf(nil) != nil {
		t.Error("CollectionsOf(nil) should be nil")
	}
}

func TestSourcesOf(t *testing.T) {
	idx, _ := loadFixture(t)

	got := strings.Join(names(idx.SourcesOf(idx.DatasetByName("eu_sanctions"))), ",")
	if got != "eu_fsf" {
		t.Errorf("SourcesOf(eu_sanctions) = %q, want eu_fsf (unknown members skipped)", got)
	}
	if idx.SourcesOf(idx.DatasetByName("us_ofac_sdn")) != nil {
		t.Error("SourcesOf(source) should be nil")
	}
}

func TestResolve(t *testing.T) {
	idx, _ := loadFixture(t)
	got := strings.Join(names(idx.Resolve([]string{"sanctions", "nope", "us_ofac_sdn"})), ",")
	if got != "sanctions,us_ofac_sdn" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestChecksumAndRaw(t *testing.T) {
	idx, data := loadFixture(t)

	if idx.Checksum() != checksum.SumBytes(data) {
		t.Errorf("Checksum() = %s, want digest of the raw snapshot", idx.Checksum())
	}
	raw, err := io.ReadAll(idx.Raw())
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != string(data) {
		t.Error("Raw() does not reproduce the snapshot")
	}
	if idx.Size() != len(data) {
		t.Errorf("Size() = %d, want %d", idx.Size(), len(data))
	}
	if idx.Version() != "20240501120000-abc" || idx.App() != "opensanctions" {
		t.Errorf("App/Version = %q/%q", idx.App(), idx.Version())
	}
	if !strings.Contains(string(idx.Model()), "Thing") {
		t.Errorf("Model() = %s", idx.Model())
	}
}

func TestExport(t *testing.T) {
	idx, _ := loadFixture(t)

	exp := idx.Export("us_ofac_sdn")
	if exp == nil || exp.Name != "us_ofac_sdn" || exp.Details == nil {
		t.Fatalf("Export() = %+v", exp)
	}
	if idx.Export("missing") != nil {
		t.Error("Export(missing) should be nil")
	}
}

func TestTypeCounts(t *testing.T) {
	idx, _ := loadFixture(t)
	counts := idx.TypeCounts()
	if counts["source"] != 2 || counts["collection"] != 2 || counts["external"] != 1 {
		t.Errorf("TypeCounts() = %v", counts)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"missing name", `{"datasets":[{"type":"source"}]}`, ErrMissingName},
		{"duplicate name", `{"datasets":[{"name":"a","type":"source"},{"name":"a","type":"collection"}]}`, ErrDuplicateDataset},
		{"unknown type", `{"datasets":[{"name":"a","type":"bundle"}]}`, ErrUnknownType},
		{"missing type", `{"datasets":[{"name":"a"}]}`, ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), Options{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		if _, err := Decode(strings.NewReader(`{"datasets":[`), Options{}); err == nil {
			t.Error("Decode() expected error for malformed JSON")
		}
	})
	t.Run("bad timestamp", func(t *testing.T) {
		_, err := Decode(strings.NewReader(`{"datasets":[{"name":"a","type":"source","last_change":"yesterday"}]}`), Options{})
		if err == nil {
			t.Error("Decode() expected error for an unparseable timestamp")
		}
	})
}

func TestDecode_EmptyIndex(t *testing.T) {
	idx, err := Decode(strings.NewReader(`{"datasets":[]}`), Options{})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(idx.Datasets()) != 0 {
		t.Errorf("Datasets() = %v, want empty", idx.Datasets())
	}
}

type failingRenderer struct{}

func (failingRenderer) ToHTML(string) (template.HTML, error) {
	return "", errors.New("boom")
}

func TestDecode_RendererError(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"datasets":[{"name":"a","type":"source","description":"x"}]}`),
		Options{Markdown: failingRenderer{}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Decode() error = %v, want renderer error", err)
	}
}

func TestTimestamp_RoundTrip(t *testing.T) {
	ts, err := ParseTimestamp("2024-04-30")
	if err != nil {
		t.Fatal(err)
	}
	out, err := ts.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"2024-04-30T00:00:00Z"` {
		t.Errorf("MarshalJSON() = %s", out)
	}
	zero, _ := Timestamp{}.MarshalJSON()
	if string(zero) != "null" {
		t.Errorf("zero MarshalJSON() = %s, want null", zero)
	}
}
