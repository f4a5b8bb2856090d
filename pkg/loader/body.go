package loader

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/Sternrassler/appliance-stats/pkg/jsonutil"
)

// requestBody serializes an endpoint body and applies replaceStrings to the text.
// A nil body stays nil.
func requestBody(body any, replaceStrings map[string]string) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	var text string
	switch b := body.(type) {
	case string:
		text = b
	default:
		encoded, err := jsonutil.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("%w: encode body: %v", ErrInvalidRequest, err)
		}
		text = string(encoded)
	}

	patterns := make([]string, 0, len(replaceStrings))
	for pattern := range replaceStrings {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: replaceStrings pattern %q: %v", ErrInvalidRequest, pattern, err)
		}
		text = re.ReplaceAllString(text, replaceStrings[pattern])
	}

	return []byte(text), nil
}
