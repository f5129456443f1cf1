package browser

import (
	"bytes"
	"net/url"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBody(t *testing.T) {
	plain := []byte("<html><title>x</title></html>")

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, err := w.Write(plain)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zst := enc.EncodeAll(plain, nil)
	require.NoError(t, enc.Close())

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "", plain},
		{"gzip", "gzip", gz.Bytes()},
		{"gzip already inflated", "gzip", plain},
		{"zstd", "zstd", zst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBody(tt.encoding, tt.body)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}

	_, err = decodeBody("br", plain)
	assert.Error(t, err)
}

func TestParseRefresh(t *testing.T) {
	tests := []struct {
		content   string
		wantDelay int
		wantURL   string
		wantOK    bool
	}{
		{"0; url=/next", 0, "/next", true},
		{"5;URL='https://a.example/'", 5, "https://a.example/", true},
		{"3", 3, "", true},
		{"soon; url=/x", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			delay, target, ok := parseRefresh(tt.content)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantDelay, delay)
				assert.Equal(t, tt.wantURL, target)
			}
		})
	}
}

func TestParseDocument(t *testing.T) {
	base, err := url.Parse("https://site.example/a/b")
	require.NoError(t, err)

	body := []byte(`<html><head>
		<meta http-equiv="Refresh" content="2; url=../next">
		<title>Caf&eacute; &lt;b&gt;menu&lt;/b&gt;</title>
	</head><body><a href="c">c</a></body></html>`)

	doc := Document{ContentType: "text/html; charset=utf-8"}
	parseDocument(&doc, body, base)

	assert.Equal(t, "utf-8", doc.Charset)
	assert.Equal(t, "Café menu", doc.Title)
	assert.Equal(t, []string{"https://site.example/a/c"}, doc.Links)
	assert.Equal(t, "https://site.example/next", doc.RefreshURL)
}

func TestContentTypeAndHTML(t *testing.T) {
	assert.Equal(t, "text/plain", contentType("text/plain", []byte("x")))
	assert.Empty(t, contentType("", nil))
	assert.True(t, isHTML("text/html; charset=utf-8"))
	assert.True(t, isHTML("application/xhtml+xml"))
	assert.False(t, isHTML("application/json"))
}
