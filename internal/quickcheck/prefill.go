package quickcheck

import (
	"net/url"
	"strings"

	"github.com/Iron-Ham/quickcheck/internal/errors"
)

// DraftParam is the deep-link query parameter naming an existing draft.
const DraftParam = "draft"

// Prefill applies deep-link query parameters to base. Parameters use the
// field keys accepted by Set; unknown parameters are ignored so links built
// for newer versions still open. The draft parameter is returned separately.
func Prefill(base Form, params url.Values) (Form, string, error) {
	form := base.Clone()
	var errs []error
	for key, values := range params {
		if key == DraftParam || len(values) == 0 || !isKnownField(form, key) {
			continue
		}
		next, err := form.Set(key, values[len(values)-1])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		form = next
	}
	return form, params.Get(DraftParam), errors.Join(errs...)
}

// ParseDeepLink parses a link such as
// "quickcheck://new?plate=ABC123&customer=Dana" or a bare query string.
func ParseDeepLink(link string) (Form, string, error) {
	raw := link
	if i := strings.IndexByte(link, '?'); i >= 0 {
		raw = link[i+1:]
	}
	params, err := url.ParseQuery(raw)
	if err != nil {
		return Form{}, "", errors.NewValidationError("malformed deep link").WithValue(link)
	}
	return Prefill(New(), params)
}

func isKnownField(f Form, key string) bool {
	_, err := f.Get(key)
	return err == nil
}
