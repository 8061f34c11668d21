package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duckDuckGoPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://ads.example">Sponsored</a>
  <a class="result__snippet">buy now</a>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fnews.example%2Fx&amp;rut=abc">X hakkında dava açıldı</a></h2>
  <a class="result__snippet">Şirket hakkında   dava açıldığı bildirildi.</a>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="https://plain.example/y">Y açıklaması</a></h2>
  <a class="result__snippet">Olağan bir açıklama.</a>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="https://empty.example"></a></h2>
</div>
</body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	var gotQuery, gotRegion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery, gotRegion = r.PostForm.Get("q"), r.PostForm.Get("kl")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(duckDuckGoPage))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(DuckDuckGoConfig{BaseURL: srv.URL, Region: "tr-tr"})
	items, err := d.Search(context.Background(), "X açıklaması", 5)
	require.NoError(t, err)

	assert.Equal(t, "X açıklaması", gotQuery)
	assert.Equal(t, "tr-tr", gotRegion)
	require.Len(t, items, 2, "ads and empty results are dropped")
	assert.Equal(t, Item{
		Title:   "X hakkında dava açıldı",
		Href:    "https://news.example/x",
		Snippet: "Şirket hakkında dava açıldığı bildirildi.",
	}, items[0])
	assert.Equal(t, "https://plain.example/y", items[1].Href)

	items, err = d.Search(context.Background(), "X", 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDuckDuckGoErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(DuckDuckGoConfig{BaseURL: srv.URL})
	_, err := d.Search(context.Background(), "x", 5)
	assert.ErrorContains(t, err, "status 202")

	_, err = d.Search(context.Background(), "   ", 5)
	assert.Error(t, err)
}

func TestResolveDuckDuckGoLink(t *testing.T) {
	assert.Equal(t, "https://a.example/p?q=1", resolveDuckDuckGoLink("//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.example%2Fp%3Fq%3D1"))
	assert.Equal(t, "https://direct.example", resolveDuckDuckGoLink("https://direct.example"))
	assert.Equal(t, "", resolveDuckDuckGoLink(""))
}
