package preview

import (
	"bytes"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ScriptPath is where the live-reload client is served.
const ScriptPath = "/livereload.js"

// maxInjectSize bounds how much of a response is buffered for injection;
// larger pages are served untouched.
const maxInjectSize = 4 << 20

// injectLiveReload adds the live-reload client to HTML responses of next.
func injectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		rec := &bufferedResponse{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		rec.finish()
	})
}

// bufferedResponse holds an HTML body until the handler returns so the
// script tag can be added to the parsed document.
type bufferedResponse struct {
	http.ResponseWriter
	status      int
	buf         bytes.Buffer
	passthrough bool
	wroteHeader bool
}

func (b *bufferedResponse) WriteHeader(code int) {
	b.status = code
	if code != http.StatusOK || !isHTML(b.Header().Get("Content-Type")) {
		b.pass()
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if !b.passthrough && !isHTML(b.Header().Get("Content-Type")) {
		b.pass()
	}
	if b.passthrough {
		return b.ResponseWriter.Write(p)
	}
	if b.buf.Len()+len(p) > maxInjectSize {
		b.pass()
		return b.ResponseWriter.Write(p)
	}
	return b.buf.Write(p)
}

// pass switches to writing straight through, flushing anything buffered.
func (b *bufferedResponse) pass() {
	if b.passthrough {
		return
	}
	b.passthrough = true
	b.writeHeader()
	if b.buf.Len() > 0 {
		_, _ = b.ResponseWriter.Write(b.buf.Bytes())
		b.buf.Reset()
	}
}

func (b *bufferedResponse) writeHeader() {
	if !b.wroteHeader {
		b.wroteHeader = true
		b.ResponseWriter.WriteHeader(b.status)
	}
}

func (b *bufferedResponse) finish() {
	if b.passthrough {
		b.writeHeader()
		return
	}
	body := b.buf.Bytes()
	if out, err := InjectScript(body, ScriptPath); err == nil {
		body = out
	}
	b.Header().Del("Content-Length")
	b.writeHeader()
	_, _ = b.ResponseWriter.Write(body)
}

func isHTML(contentType string) bool {
	return contentType == "" || strings.HasPrefix(contentType, "text/html")
}

// InjectScript parses doc and appends a script element loading src to its
// body. Documents without an explicit body get one from the parser.
func InjectScript(doc []byte, src string) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	body := findElement(root, atom.Body)
	if body == nil {
		return doc, nil
	}
	body.AppendChild(&html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "src", Val: src}},
	})
	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
