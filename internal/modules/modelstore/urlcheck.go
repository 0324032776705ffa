package modelstore

import (
	"net/url"
	"path"
	"strings"

	"github.com/jobtrail/core/internal/pkg/aierr"
)

// ModelExt is the on-device model file extension.
const ModelExt = ".gguf"

// DeriveFilename extracts the model filename a download URL would produce,
// rejecting links that would corrupt it. Query strings are rejected outright
// rather than stripped: silently renaming a user-pasted link would hide the
// exact mistake this check exists to surface.
func DeriveFilename(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", aierr.New(aierr.KindInvalidURL, "download url is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", aierr.Wrap(aierr.KindInvalidURL, "download url is not parseable", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", aierr.Newf(aierr.KindInvalidURL, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", aierr.New(aierr.KindInvalidURL, "download url has no host")
	}
	if u.RawQuery != "" {
		return "", aierr.Newf(aierr.KindInvalidURL, "download url carries query parameters (%q); use a direct file link", u.RawQuery)
	}
	if u.Fragment != "" {
		return "", aierr.New(aierr.KindInvalidURL, "download url carries a fragment; use a direct file link")
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", aierr.New(aierr.KindInvalidURL, "download url does not name a file")
	}
	if !ValidFilename(name) {
		return "", aierr.Newf(aierr.KindInvalidURL, "%q is not a usable model filename", name)
	}
	return name, nil
}

// ValidFilename reports whether a model filename is clean: it ends with the
// model extension and carries no URL artifacts. Names like
// "model.gguf?download=true" come from downloads of unchecked links and
// break every later identity check.
func ValidFilename(name string) bool {
	if strings.ContainsAny(name, "?&=#") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(name), ModelExt)
}

// looksLikeModelFile reports whether a directory entry is a model file,
// including ones with a corrupted name, so cleanup can find them.
func looksLikeModelFile(name string) bool {
	return strings.Contains(strings.ToLower(name), ModelExt)
}
