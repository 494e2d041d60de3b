package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Snapshot computes a stable hash of output-affecting configuration fields.
// Serve and build tuning are excluded since they never change rendered bytes.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	w("input.dir", c.Input.Dir)
	w("input.ext", c.Input.Ext)
	w("input.enc", c.Input.Enc)
	w("output.dir", c.Output.Dir)
	w("output.ext", c.Output.Ext)
	w("output.enc", c.Output.Enc)
	w("media.dir", c.Media.Dir)
	w("template.path", c.Template.Path)
	w("markdown", strconv.FormatBool(c.Markdown.Unsafe), strconv.FormatBool(c.Markdown.HeadingIDs))
	w("site.title", c.Site.Title)
	for i, m := range c.Menu {
		w("menu."+strconv.Itoa(i), m.Slug, m.Title)
	}
	return hex.EncodeToString(h.Sum(nil))
}
