package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturePage = `<!DOCTYPE html>
<html>
<head>
  <title>Gophers in the Wild</title>
  <script>window.tracker = "should not appear";</script>
  <style>body { color: red; }</style>
</head>
<body>
  <nav>Home | About | Contact</nav>
  <header>Site banner</header>
  <article>
    <h1>Gophers in the Wild</h1>
    <p>Gophers   are burrowing rodents   found across North America.</p>
    <p>They dig extensive tunnel systems.</p>
  </article>
  <aside>Related links</aside>
  <footer>Copyright notice</footer>
</body>
</html>`

func TestFetcher_FetchAndExtract(t *testing.T) {
	t.Run("extracts title and clean text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(fixturePage))
		}))
		defer server.Close()

		f, err := NewFetcher()
		require.NoError(t, err)

		result, err := f.FetchAndExtract(context.Background(), server.URL)
		require.NoError(t, err)

		assert.Equal(t, "Gophers in the Wild", result.Title)
		assert.Contains(t, result.CleanText, "burrowing rodents found across North America")
		assert.Contains(t, result.CleanText, "tunnel systems")

		// Chrome and non-content elements are stripped.
		assert.NotContains(t, result.CleanText, "should not appear")
		assert.NotContains(t, result.CleanText, "Home | About")
		assert.NotContains(t, result.CleanText, "Related links")
		assert.NotContains(t, result.CleanText, "Copyright notice")

		// Whitespace inside a paragraph is collapsed to single spaces.
		assert.NotContains(t, result.CleanText, "  ")
		assert.Positive(t, result.WordCount)
	})

	t.Run("block elements become paragraphs", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(fixturePage))
		}))
		defer server.Close()

		f, err := NewFetcher()
		require.NoError(t, err)

		result, err := f.FetchAndExtract(context.Background(), server.URL)
		require.NoError(t, err)

		// Each heading and paragraph keeps its own line so segmentation
		// can break at the page's boundaries.
		assert.Equal(t, "Gophers in the Wild\n\n"+
			"Gophers are burrowing rodents found across North America.\n\n"+
			"They dig extensive tunnel systems.", result.CleanText)
	})

	t.Run("nested blocks are not duplicated", func(t *testing.T) {
		page := `<html><body><article>
			<blockquote><p>Quoted line.</p></blockquote>
			<ul><li>First item</li><li>Second item</li></ul>
		</article></body></html>`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(page))
		}))
		defer server.Close()

		f, err := NewFetcher()
		require.NoError(t, err)

		result, err := f.FetchAndExtract(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "Quoted line.\n\nFirst item\n\nSecond item", result.CleanText)
	})

	t.Run("falls back to body without content container", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><body><p>Plain page text.</p></body></html>"))
		}))
		defer server.Close()

		f, err := NewFetcher()
		require.NoError(t, err)

		result, err := f.FetchAndExtract(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "Plain page text.", result.CleanText)
		assert.Equal(t, 3, result.WordCount)
	})

	t.Run("sends the configured user agent", func(t *testing.T) {
		var gotAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAgent = r.Header.Get("User-Agent")
			w.Write([]byte("<html><body>ok</body></html>"))
		}))
		defer server.Close()

		f, err := NewFetcher(WithUserAgent("test-agent/2.0"))
		require.NoError(t, err)

		_, err = f.FetchAndExtract(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "test-agent/2.0", gotAgent)
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		f, err := NewFetcher()
		require.NoError(t, err)

		result, err := f.FetchAndExtract(context.Background(), server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.Nil(t, result)
	})

	t.Run("empty page is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><body><script>only();</script></body></html>"))
		}))
		defer server.Close()

		f, err := NewFetcher()
		require.NoError(t, err)

		_, err = f.FetchAndExtract(context.Background(), server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("cancelled context aborts the request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><body>ok</body></html>"))
		}))
		defer server.Close()

		f, err := NewFetcher()
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = f.FetchAndExtract(ctx, server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRequestFailed)
	})
}
