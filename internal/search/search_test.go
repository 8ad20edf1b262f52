package search

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

var defaults = Defaults{Limit: 25, MaxLimit: 500, Schema: "Thing"}

func TestParseParams(t *testing.T) {
	values, _ := url.ParseQuery("q=+putin+&offset=50&countries=ru&countries=by&topics=&datasets=us_ofac_sdn&entity=NK-1&scope=eu_fsf&other=x")
	p := ParseParams(values, defaults)

	assert.Equal(t, "putin", p.Query)
	assert.Equal(t, 50, p.Offset)
	assert.Equal(t, 25, p.Limit)
	assert.Equal(t, "Thing", p.Schema)
	assert.Equal(t, "eu_fsf", p.Scope)
	assert.Equal(t, "NK-1", p.Entity)
	assert.Equal(t, map[string][]string{
		"countries": {"ru", "by"},
		"datasets":  {"us_ofac_sdn"},
	}, p.Filters)
	assert.True(t, p.Filtered())
}

func TestParseParams_Clamping(t *testing.T) {
	tests := []struct {
		query      string
		wantOffset int
		wantLimit  int
	}{
		{"", 0, 25},
		{"offset=-10", 0, 25},
		{"offset=abc", 0, 25},
		{"limit=0", 0, 0},
		{"limit=-5", 0, 0},
		{"limit=10000", 0, 500},
		{"limit=ten", 0, 25},
		{"offset=25&limit=10", 25, 10},
		{"offset=9223372036854775807", MaxOffset, 25},
		{"offset=10001", MaxOffset, 25},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			p := ParseParams(values, defaults)
			assert.Equal(t, tt.wantOffset, p.Offset)
			assert.Equal(t, tt.wantLimit, p.Limit)
		})
	}
}

func TestParseParams_MinLimit(t *testing.T) {
	d := Defaults{Limit: 25, MinLimit: 1, MaxLimit: 100}
	for _, query := range []string{"limit=0", "limit=-3"} {
		values, _ := url.ParseQuery(query)
		assert.Equal(t, 1, ParseParams(values, d).Limit, query)
	}
}

func TestParams_Upstream(t *testing.T) {
	values, _ := url.ParseQuery("q=acme&schema=Company&offset=25&topics=sanction")
	q := ParseParams(values, defaults).Upstream()

	assert.Equal(t, "acme", q.Query)
	assert.Equal(t, "Company", q.Schema)
	assert.Equal(t, 25, q.Offset)
	assert.Equal(t, 25, q.Limit)
	assert.Equal(t, []string{"sanction"}, q.Filters["topics"])
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name                 string
		total, offset, limit int
		want                 Pagination
	}{
		{
			name: "first page", total: 60, offset: 0, limit: 25,
			want: Pagination{Total: 60, Lower: 1, Upper: 25, HasPrev: false, HasNext: true, PrevOffset: 0, NextOffset: 25},
		},
		{
			name: "middle page", total: 60, offset: 25, limit: 25,
			want: Pagination{Total: 60, Lower: 26, Upper: 50, HasPrev: true, HasNext: true, PrevOffset: 0, NextOffset: 50},
		},
		{
			name: "last partial page", total: 60, offset: 50, limit: 25,
			want: Pagination{Total: 60, Lower: 51, Upper: 60, HasPrev: true, HasNext: false, PrevOffset: 25, NextOffset: 75},
		},
		{
			name: "exact fit", total: 50, offset: 25, limit: 25,
			want: Pagination{Total: 50, Lower: 26, Upper: 50, HasPrev: true, HasNext: false, PrevOffset: 0, NextOffset: 50},
		},
		{
			name: "offset not aligned", total: 100, offset: 10, limit: 25,
			want: Pagination{Total: 100, Lower: 11, Upper: 35, HasPrev: true, HasNext: true, PrevOffset: 0, NextOffset: 35},
		},
		{
			name: "zero limit", total: 60, offset: 0, limit: 0,
			want: Pagination{Total: 60},
		},
		{
			name: "offset past int range", total: 120, offset: math.MaxInt, limit: 25,
			want: Pagination{Total: 120, Lower: MaxOffset + 1, Upper: 120, HasPrev: true, HasNext: false, PrevOffset: MaxOffset - 25, NextOffset: MaxOffset + 25},
		},
		{
			name: "no page beyond max offset", total: 50000, offset: 9990, limit: 25,
			want: Pagination{Total: 50000, Lower: 9991, Upper: 10015, HasPrev: true, HasNext: false, PrevOffset: 9965, NextOffset: 10015},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPagination(tt.total, tt.offset, tt.limit))
		})
	}

	assert.False(t, NewPagination(0, 0, 25).Visible())
	assert.True(t, NewPagination(1, 0, 25).Visible())
	assert.False(t, NewPagination(60, 0, 0).Visible())
}

func TestWithParam(t *testing.T) {
	values, _ := url.ParseQuery("q=acme&countries=ru&offset=0")

	assert.Equal(t, "countries=ru&offset=25&q=acme", WithParam(values, "offset", "25"))
	assert.Equal(t, "countries=ru&entity=NK-1&offset=0&q=acme", WithParam(values, "entity", "NK-1"))
	// original untouched
	assert.Equal(t, "0", values.Get("offset"))
	assert.False(t, values.Has("entity"))
}

func TestWithoutParam(t *testing.T) {
	values, _ := url.ParseQuery("q=acme&entity=NK-1")

	assert.Equal(t, "q=acme", WithoutParam(values, "entity"))
	assert.Equal(t, "NK-1", values.Get("entity"))
	assert.Equal(t, "", WithoutParam(url.Values{}, "entity"))
}

func TestToggle(t *testing.T) {
	values, _ := url.ParseQuery("q=acme&countries=ru&offset=50")

	assert.Equal(t, "countries=ru&countries=by&q=acme", Toggle(values, "countries", "by"))
	assert.Equal(t, "q=acme", Toggle(values, "countries", "ru"))
	assert.Equal(t, []string{"ru"}, values["countries"])
}

func TestCarryOver(t *testing.T) {
	values, _ := url.ParseQuery("q=acme&offset=50&schema=Person&countries=ru&countries=by")

	assert.Equal(t, []HiddenField{
		{Name: "countries", Value: "ru"},
		{Name: "countries", Value: "by"},
		{Name: "schema", Value: "Person"},
	}, CarryOver(values))
	assert.Empty(t, CarryOver(url.Values{"q": {"x"}}))
}
