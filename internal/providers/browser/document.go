package browser

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// acceptEncoding is advertised on page requests; decodeBody undoes each
const acceptEncoding = "gzip, deflate, zstd"

// maxBody caps how much of a document is read for parsing
const maxBody = 8 << 20

var titlePolicy = bluemonday.StrictPolicy()

// Document is what the page currently shows
type Document struct {
	URL         string
	Status      int
	ContentType string
	Charset     string
	Title       string
	Links       []string
	// RefreshURL is the target of a meta refresh, if the page declares one
	RefreshURL string
}

// decodeBody reverses the Content-Encoding of a response body
func decodeBody(encoding string, body []byte) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		// resty already inflates gzip bodies
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		r = fr
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
	return io.ReadAll(io.LimitReader(r, maxBody))
}

// contentType returns the declared media type, sniffing when the header is absent
func contentType(header string, body []byte) string {
	if header != "" {
		return header
	}
	if len(body) == 0 {
		return ""
	}
	return mimetype.Detect(body).String()
}

// detectCharset prefers the declared charset and falls back to detection
func detectCharset(ct string, body []byte) string {
	if _, params, err := mime.ParseMediaType(ct); err == nil && params["charset"] != "" {
		return strings.ToLower(params["charset"])
	}
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func isHTML(ct string) bool {
	media, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.Contains(ct, "html")
	}
	return media == "text/html" || media == "application/xhtml+xml"
}

// parseDocument fills the HTML derived fields of doc from body
func parseDocument(doc *Document, body []byte, base *url.URL) {
	doc.Charset = detectCharset(doc.ContentType, body)

	var utf8 []byte
	if r, err := charset.NewReaderLabel(doc.Charset, bytes.NewReader(body)); err == nil {
		utf8, _ = io.ReadAll(r)
	}
	if utf8 == nil {
		utf8 = body
	}

	doc.Title, doc.Links = extract(utf8, base)
	doc.RefreshURL = metaRefresh(utf8, base)
}

// extract pulls the title and absolute link targets out of an HTML body
func extract(body []byte, base *url.URL) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", nil
	}

	title := strings.TrimSpace(titlePolicy.Sanitize(doc.Find("title").First().Text()))
	if title == "" {
		title = base.Host
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return title, links
}

// metaRefresh returns the absolute target of <meta http-equiv="refresh">
func metaRefresh(body []byte, base *url.URL) string {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	node := htmlquery.FindOne(root, `//meta[translate(@http-equiv,"REFSH","refsh")="refresh"]`)
	if node == nil {
		return ""
	}
	_, target, ok := parseRefresh(htmlquery.SelectAttr(node, "content"))
	if !ok || target == "" {
		return ""
	}
	ref, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// parseRefresh splits "5; url=/next" into its delay and target
func parseRefresh(content string) (int, string, bool) {
	delay, rest, _ := strings.Cut(content, ";")
	if sep := strings.IndexAny(delay, ","); sep >= 0 {
		delay, rest = delay[:sep], delay[sep+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(delay))
	if err != nil || n < 0 {
		return 0, "", false
	}

	rest = strings.TrimSpace(rest)
	if len(rest) >= 4 && strings.EqualFold(rest[:4], "url=") {
		rest = rest[4:]
	}
	return n, strings.Trim(strings.TrimSpace(rest), `'"`), true
}
